package database

import (
	"fmt"
	"log"
)

// PoolStats là snapshot trạng thái connection pool cho health endpoint
type PoolStats struct {
	TotalConns    int32 `json:"total_conns"`
	IdleConns     int32 `json:"idle_conns"`
	AcquiredConns int32 `json:"acquired_conns"`
	MaxConns      int32 `json:"max_conns"`
}

// Stats trả về pool statistics hiện tại
func (db *PostgresDB) Stats() (*PoolStats, error) {
	if db.Pool == nil {
		return nil, fmt.Errorf("database pool is not initialized")
	}

	stat := db.Pool.Stat()
	return &PoolStats{
		TotalConns:    stat.TotalConns(),
		IdleConns:     stat.IdleConns(),
		AcquiredConns: stat.AcquiredConns(),
		MaxConns:      stat.MaxConns(),
	}, nil
}

// Close đóng connection pool, gọi khi shutdown
func (db *PostgresDB) Close() error {
	if db.Pool != nil {
		log.Println("[DATABASE] Closing connection pool...")
		db.Pool.Close()
	}
	return nil
}
