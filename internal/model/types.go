package model

import "time"

// VersionedRecord captures schema and codec evolution for persistent data.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version"`
	CodecVersion  int `json:"codec_version"`
}

const (
	RunStatusRunning  = "running"
	RunStatusFinished = "finished"
	RunStatusFailed   = "failed"
)

// RunRecord is the metadata of one evolution run.
type RunRecord struct {
	VersionedRecord
	ID             string    `json:"id"`
	Environment    string    `json:"environment"`
	Topology       []int     `json:"topology"`
	PopulationSize int       `json:"population_size"`
	Generations    int       `json:"generations"`
	PMutation      float64   `json:"p_mutation"`
	PCrossover     float64   `json:"p_crossover"`
	PInversion     float64   `json:"p_inversion"`
	Alpha          float64   `json:"alpha"`
	Seed           int64     `json:"seed"`
	Status         string    `json:"status"`
	CreatedAt      time.Time `json:"created_at"`
	FinishedAt     time.Time `json:"finished_at,omitempty"`
	BestFitness    float64   `json:"best_fitness"`
	BestCheckpoint string    `json:"best_checkpoint,omitempty"`
	LogPath        string    `json:"log_path,omitempty"`
}

type GenerationRecord struct {
	Generation int       `json:"generation"`
	Timestamp  time.Time `json:"timestamp"`
	Mean       float64   `json:"mean_fitness"`
	Min        float64   `json:"min_fitness"`
	Max        float64   `json:"max_fitness"`
}
