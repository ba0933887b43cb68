// SPDX-FileCopyrightText: (C) 2024 Intel Corporation
// SPDX-License-Identifier: Apache 2.0

// Package db provides an optional, purely observational audit trail of
// handshake and replay events: a row per completed or aborted EDHOC
// handshake and a row per OSCORE replay rejection. Nothing in the protocol
// core reads this back — losing the database never affects a session in
// progress.
package db

import (
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// HandshakeRecord is one completed or aborted EDHOC handshake.
type HandshakeRecord struct {
	gorm.Model
	PeerKid   string
	Outcome   string // "complete", "own_error", "peer_error"
	Timestamp time.Time
}

// ReplayRejection is one OSCORE message dropped for failing the replay
// window check.
type ReplayRejection struct {
	gorm.Model
	Piv       uint64
	Timestamp time.Time
}

// DB wraps the gorm handle the audit log writes through.
type DB struct {
	conn *gorm.DB
}

// Open opens the audit database. dbType selects the driver the same way the
// teacher's DatabaseConfig.getState switches on a configured type; dsn is the
// sqlite file path or the postgres connection string.
func Open(dbType, dsn string) (*DB, error) {
	var dialector gorm.Dialector
	switch dbType {
	case "sqlite":
		dialector = sqlite.Open(dsn)
	case "postgres":
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("db: unknown database type %q", dbType)
	}

	conn, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("db: open %s: %w", dbType, err)
	}
	if err := conn.AutoMigrate(&HandshakeRecord{}, &ReplayRejection{}); err != nil {
		return nil, fmt.Errorf("db: migrate: %w", err)
	}
	return &DB{conn: conn}, nil
}

// RecordHandshake appends a handshake outcome row. Errors are swallowed
// into the return value only — the caller logs and continues, since audit
// logging failures must never affect an in-progress session.
func (d *DB) RecordHandshake(peerKid []byte, outcome string, at time.Time) error {
	if d == nil {
		return nil
	}
	return d.conn.Create(&HandshakeRecord{
		PeerKid:   fmt.Sprintf("%x", peerKid),
		Outcome:   outcome,
		Timestamp: at,
	}).Error
}

// RecordReplayRejection appends a replay-rejection row.
func (d *DB) RecordReplayRejection(piv uint64, at time.Time) error {
	if d == nil {
		return nil
	}
	return d.conn.Create(&ReplayRejection{Piv: piv, Timestamp: at}).Error
}
