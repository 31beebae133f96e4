package handlers

import (
	"net/http"

	"occupancy/internal/level"
	"occupancy/internal/models"
)

// LevelReader reports the current level with the data behind it.
type LevelReader interface {
	Read() level.Reading
}

type levelResponse struct {
	Level    models.Level `json:"level"`
	MaxLevel models.Level `json:"max_level"`
	Sum      float64      `json:"device_sum"`
	Sensors  int          `json:"sensors"`
}

// LevelHandler serves GET /api/level.
type LevelHandler struct {
	levels   LevelReader
	maxLevel models.Level
}

func NewLevelHandler(levels LevelReader, maxLevel models.Level) *LevelHandler {
	return &LevelHandler{levels: levels, maxLevel: maxLevel}
}

func (h *LevelHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rd := h.levels.Read()
	writeJSON(w, http.StatusOK, levelResponse{
		Level:    rd.Level,
		MaxLevel: h.maxLevel,
		Sum:      rd.Sum,
		Sensors:  rd.Sensors,
	})
}
