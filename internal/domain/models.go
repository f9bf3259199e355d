package domain

import "time"

// CaptionState is the per-dataset sidecar stored as _caption_state.json in
// the dataset root. It is the only handshake between the HTTP endpoints and
// the background captioning worker: start writes it, the worker advances it,
// cancel deletes it. A missing or unreadable sidecar means "no active run".
type CaptionState struct {
	Version   int       `json:"version"`
	Status    string    `json:"status"`
	Progress  int       `json:"progress"`
	Total     int       `json:"total"`
	Provider  string    `json:"provider,omitempty"`
	Model     string    `json:"model,omitempty"`
	Prompt    string    `json:"prompt,omitempty"`
	BaseURL   string    `json:"baseUrl,omitempty"`
	UpdatedAt time.Time `json:"updatedAt"`
}

const (
	CaptionStatusIdle      = "idle"
	CaptionStatusRunning   = "running"
	CaptionStatusCompleted = "completed"
	CaptionStatusError     = "error"
)

const CaptionStateVersion = 1

// DatasetLock is the _dataset.json manifest written once when a dataset is
// locked for training. Once IsLocked is true the dataset is immutable input
// to downstream training jobs; enforcement is the consumer's contract.
type DatasetLock struct {
	Identifier     string    `json:"identifier"`
	DatasetName    string    `json:"datasetName"`
	FolderPath     string    `json:"folderPath"`
	IsLocked       bool      `json:"isLocked"`
	TotalMedia     int       `json:"totalMedia"`
	CaptionedMedia int       `json:"captionedMedia"`
	LockedAt       time.Time `json:"lockedAt"`
}

// DatasetSummary is the listing view of one dataset directory.
type DatasetSummary struct {
	Name      string `json:"name"`
	Total     int    `json:"total"`
	Captioned int    `json:"captioned"`
	Status    string `json:"status"`
	IsLocked  bool   `json:"isLocked"`
}

// CaptionConfig is the backend configuration carried verbatim from the
// start call through the state sidecar to the caption generation step.
type CaptionConfig struct {
	Provider string `json:"provider"`
	BaseURL  string `json:"baseUrl"`
	Model    string `json:"model"`
	Prompt   string `json:"prompt"`
	APIKey   string `json:"-"`
}

const (
	ProviderOllama   = "ollama"
	ProviderOpenAI   = "openai"
	ProviderLMStudio = "lmstudio"
)
