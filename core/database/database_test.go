package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConnect_InvalidConnection(t *testing.T) {
	cfg := Config{
		Host:           "localhost",
		Port:           9999, // unused port
		User:           "root",
		Password:       "wrongpassword",
		Name:           "sheetbridge",
		TimeoutSeconds: 1,
	}

	db, err := Connect(cfg)
	assert.Error(t, err)
	assert.Nil(t, db)
}
