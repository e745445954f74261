package shared

import "time"

// HTTP Client Configuration
const (
	DefaultHTTPTimeout     = 180 * time.Second
	DefaultRequestTimeout  = 60 * time.Second
	DefaultShutdownTimeout = 10 * time.Second
)

// Goodfire Configuration
const (
	DefaultGoodfireBaseURL = "https://api.goodfire.ai/api/inference/v1"
	DefaultTagModel        = "meta-llama/Meta-Llama-3.1-8B-Instruct"
	GoodfireAPIKeyEnv      = "GOODFIRE_API_KEY"
)

// Completion Configuration
const (
	ProcessTextMaxTokens = 100
	TagMaxTokens         = 50
	TitleMaxTokens       = 25
	SummaryMaxTokens     = 300
	TopFeatures          = 5
)

// Server Configuration
const (
	DefaultListenAddr  = ":8000"
	DefaultCORSOrigin  = "http://localhost:3000"
	DefaultVariantsDir = "variants"
)

// Envelope statuses
const (
	StatusSuccess = "success"
	StatusError   = "error"
)
