package config

import "time"

const (
	// WebSocket transport
	WriteWait      = 10 * time.Second
	PongWait       = 60 * time.Second
	PingPeriod     = (PongWait * 9) / 10
	MaxMessageSize = 4096

	// Chat
	MaxContentLength = 2000
)
