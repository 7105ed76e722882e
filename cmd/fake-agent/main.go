package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

// fake-agent is a stand-in agent process for local development. It
// echoes every user message back through the chat server's agent API
// and exercises the typing/state surface. Sending the literal message
// "crash" makes it exit so the liveness monitor can be observed
// reporting a dead agent.

var (
	listenAddr = flag.String("listen", "127.0.0.1:8700", "address for the agent's own HTTP surface")
	apiBase    = flag.String("api", "http://127.0.0.1:4010", "base URL of the chat server's agent API")
)

type fakeAgent struct {
	client *http.Client
	logger *zap.Logger

	mu    sync.Mutex
	state string
}

func (a *fakeAgent) setState(state string) {
	a.mu.Lock()
	a.state = state
	a.mu.Unlock()
	a.post("/state", map[string]interface{}{"state": state})
}

func (a *fakeAgent) post(path string, body interface{}) {
	payload, err := json.Marshal(body)
	if err != nil {
		a.logger.Error("marshal failed", zap.Error(err))
		return
	}
	resp, err := a.client.Post(*apiBase+path, "application/json", bytes.NewReader(payload))
	if err != nil {
		a.logger.Warn("agent API call failed", zap.String("path", path), zap.Error(err))
		return
	}
	resp.Body.Close()
}

func (a *fakeAgent) handleEvents(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
		return
	}

	eventType := gjson.GetBytes(body, "type").String()
	a.logger.Info("event received", zap.String("type", eventType))

	// Acknowledge before doing any work so the server marks us alive.
	c.JSON(http.StatusOK, gin.H{"ok": true})

	if eventType != "user_message" {
		return
	}
	content := gjson.GetBytes(body, "payload.content").String()

	go func() {
		if content == "crash" {
			a.logger.Warn("crash requested, exiting")
			os.Exit(1)
		}

		a.setState("thinking")
		time.Sleep(500 * time.Millisecond)
		a.post("/send", map[string]interface{}{
			"content": fmt.Sprintf("Echo: %s", content),
		})
		a.setState("idle")
	}()
}

func (a *fakeAgent) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (a *fakeAgent) handleState(c *gin.Context) {
	a.mu.Lock()
	state := a.state
	a.mu.Unlock()
	c.JSON(http.StatusOK, gin.H{"state": state})
}

func (a *fakeAgent) handleMemory(c *gin.Context) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	c.JSON(http.StatusOK, gin.H{
		"alloc":      m.Alloc,
		"totalAlloc": m.TotalAlloc,
		"numGC":      m.NumGC,
	})
}

func (a *fakeAgent) handleStop(c *gin.Context) {
	a.logger.Info("stop requested")
	a.setState("idle")
	c.JSON(http.StatusOK, gin.H{"stopped": true})
}

func main() {
	flag.Parse()

	logger, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	agent := &fakeAgent{
		client: &http.Client{Timeout: 5 * time.Second},
		logger: logger,
		state:  "idle",
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	router.POST("/events", agent.handleEvents)
	router.GET("/info/health", agent.handleHealth)
	router.GET("/info/state", agent.handleState)
	router.GET("/info/memory", agent.handleMemory)
	router.POST("/stop", agent.handleStop)

	logger.Info("fake agent listening",
		zap.String("addr", *listenAddr),
		zap.String("api", *apiBase))
	if err := router.Run(*listenAddr); err != nil {
		logger.Fatal("server failed", zap.Error(err))
	}
}
