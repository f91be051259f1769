package config

import (
	"github.com/danmuck/ackwire/internal/client"
	"github.com/danmuck/ackwire/internal/protocol/frame"
	"github.com/danmuck/ackwire/internal/server"
)

func serverFileFrom(cfg server.Config) serverFile {
	return serverFile{
		Name:             cfg.Name,
		ListenAddr:       cfg.ListenAddr,
		AdminAddr:        cfg.AdminAddr,
		AdminToken:       cfg.AdminToken,
		Mode:             string(cfg.Mode),
		IdleTimeout:      cfg.IdleTimeout.String(),
		WriteTimeout:     cfg.WriteTimeout.String(),
		HandshakeTimeout: cfg.HandshakeTimeout.String(),
		CorsOrigins:      cfg.CorsOrigins,
		BcryptCost:       cfg.BcryptCost,
		Frame:            frameFileFrom(cfg.Frame),
		Security:         cfg.Security,
		Users:            cfg.Users,
	}
}

func clientFileFrom(cfg client.Config) clientFile {
	return clientFile{
		Addr:            cfg.Addr,
		DialTimeout:     cfg.DialTimeout.String(),
		RequestTimeout:  cfg.RequestTimeout.String(),
		ConnectAttempts: cfg.ConnectAttempts,
		Backoff: backoffFile{
			InitialDelay: cfg.Backoff.InitialDelay.String(),
			Multiplier:   cfg.Backoff.Multiplier,
			MaxDelay:     cfg.Backoff.MaxDelay.String(),
			Jitter:       cfg.Backoff.Jitter,
		},
		Frame:    frameFileFrom(cfg.Frame),
		Security: cfg.Security,
	}
}

func frameFileFrom(cfg frame.Config) frameFile {
	return frameFile{MaxPayloadBytes: cfg.MaxPayloadBytes, ChunkSize: cfg.ChunkSize}
}
