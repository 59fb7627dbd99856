// Package main implements a mock executor worker: it accepts a
// DispatchTask from the executor manager's /tasks endpoint and simulates a
// run by posting a scripted sequence of callbacks back to the backend's
// /callback endpoint. It exists to exercise the dispatch/callback contract
// end-to-end without a real coding-agent process, mirroring the role the
// reference backend's mock-agent binary plays for its own protocol.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/agentforge/controlplane/internal/common/config"
	"github.com/agentforge/controlplane/internal/common/httpmw"
	"github.com/agentforge/controlplane/internal/common/logger"
	"github.com/agentforge/controlplane/internal/executormanager"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		OutputPath: cfg.Logging.OutputPath,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	log = log.With(zap.String("component", "mockexecutor"))

	backendURL := cfg.ExecutorManager.BackendURL
	client := &http.Client{Timeout: 10 * time.Second}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(httpmw.RequestID(), httpmw.Recovery(log), httpmw.RequestLogger(log, "mockexecutor"), httpmw.ErrorEnvelope(log))
	router.GET("/health", func(c *gin.Context) {
		httpmw.OK(c, http.StatusOK, gin.H{"status": "ok"})
	})
	router.POST("/tasks", func(c *gin.Context) {
		var task executormanager.DispatchTask
		if err := c.ShouldBindJSON(&task); err != nil {
			httpmw.Fail(c, err)
			return
		}
		go runScriptedTask(context.Background(), client, backendURL, log, task)
		httpmw.OK(c, http.StatusAccepted, gin.H{"accepted": true})
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	log.Info("mock executor listening", zap.String("addr", addr), zap.String("backend_url", backendURL))
	if err := router.Run(addr); err != nil {
		log.Fatal("mock executor server exited", zap.Error(err))
	}
}

// runScriptedTask plays back a fixed callback sequence for a dispatched
// task: one assistant message, one no-op tool execution, then success.
func runScriptedTask(ctx context.Context, client *http.Client, backendURL string, log *logger.Logger, task executormanager.DispatchTask) {
	log = log.With(zap.String("run_id", task.RunID), zap.String("session_id", task.SessionID))

	steps := []map[string]any{
		{
			"kind":       "message.appended",
			"run_id":     task.RunID,
			"session_id": task.SessionID,
			"payload": map[string]any{
				"role":    "assistant",
				"content": map[string]any{"text": "working on it"},
			},
		},
		{
			"kind":       "tool.started",
			"run_id":     task.RunID,
			"session_id": task.SessionID,
			"payload": map[string]any{
				"id":        task.RunID + "-tool-1",
				"tool_name": "noop",
				"input":     map[string]any{},
			},
		},
		{
			"kind":       "tool.finished",
			"run_id":     task.RunID,
			"session_id": task.SessionID,
			"payload": map[string]any{
				"id":     task.RunID + "-tool-1",
				"status": "succeeded",
				"output": map[string]any{},
			},
		},
		{
			"kind":       "run.succeeded",
			"run_id":     task.RunID,
			"session_id": task.SessionID,
			"payload":    map[string]any{},
		},
	}

	for _, step := range steps {
		if err := postCallback(ctx, client, backendURL, step); err != nil {
			log.Error("callback post failed", zap.Error(err))
			return
		}
		time.Sleep(200 * time.Millisecond)
	}
	log.Info("scripted task completed")
}

func postCallback(ctx context.Context, client *http.Client, backendURL string, body map[string]any) error {
	b, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, backendURL+"/callback", bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("callback post returned status %d", resp.StatusCode)
	}
	return nil
}
