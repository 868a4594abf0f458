package domain

import (
	"time"
)

// CampaignOutcome classifies how a finished campaign went.
type CampaignOutcome string

const (
	OutcomeSuccess    CampaignOutcome = "success"
	OutcomePartial    CampaignOutcome = "partial"
	OutcomeFailed     CampaignOutcome = "failed"
	OutcomePessimized CampaignOutcome = "pessimized"
	OutcomeUnknown    CampaignOutcome = "unknown"
)

// RampDay is one day of a campaign's ramp profile as recorded in a
// learning record: what was planned against what actually ran.
type RampDay struct {
	Day     int `json:"day"`
	Planned int `json:"planned"`
	Actual  int `json:"actual"`
}

// PushLearningRecord is the write-once outcome of one terminated
// campaign. Records are the sole input to niche-level risk statistics
// and are never mutated after insert.
type PushLearningRecord struct {
	ID                  string          `json:"id" db:"id"`
	CampaignID          string          `json:"campaign_id" db:"campaign_id"`
	Niche               string          `json:"niche" db:"niche"`
	AppAgeDays          int             `json:"app_age_days" db:"app_age_days"`
	OrganicDownloads    int             `json:"organic_downloads" db:"organic_downloads"`
	CategoryRank        *int            `json:"category_rank" db:"category_rank"`
	AvgKeywordDifficulty float64        `json:"avg_keyword_difficulty" db:"avg_keyword_difficulty"`
	AvgKeywordTraffic   float64         `json:"avg_keyword_traffic" db:"avg_keyword_traffic"`
	StartPosition       *int            `json:"start_position" db:"start_position"`
	Strategy            CampaignStrategy `json:"strategy" db:"strategy"`
	DailyInstalls       float64         `json:"daily_installs" db:"daily_installs"`
	TotalInstalls       int             `json:"total_installs" db:"total_installs"`
	DurationDays        int             `json:"duration_days" db:"duration_days"`
	RampProfile         []RampDay       `json:"ramp_profile" db:"ramp_profile"`
	InstallVelocity     float64         `json:"install_velocity" db:"install_velocity"`
	PeakDailyInstalls   int             `json:"peak_daily_installs" db:"peak_daily_installs"`
	RampUpDays          int             `json:"ramp_up_days" db:"ramp_up_days"`
	Outcome             CampaignOutcome `json:"outcome" db:"outcome"`
	FinalPosition       *int            `json:"final_position" db:"final_position"`
	PositionGain        *float64        `json:"position_gain" db:"position_gain"`
	Pessimized          bool            `json:"pessimized" db:"pessimized"`
	PessimizationDay    *int            `json:"pessimization_day" db:"pessimization_day"`
	CreatedAt           time.Time       `json:"created_at" db:"created_at"`
}

// RiskLevel is the qualitative bucket for a 0-100 risk score.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// RiskAssessment is the result of scoring a candidate campaign against
// niche history.
type RiskAssessment struct {
	Score          int       `json:"score"`
	Level          RiskLevel `json:"level"`
	Recommendation string    `json:"recommendation"`
	Factors        []string  `json:"factors"`
	AssessedAt     time.Time `json:"assessed_at"`
}

// NicheStats is the aggregate view of a niche's recent campaign history
// consumed by the risk assessor. Computed over a bounded recent window,
// not the full history.
type NicheStats struct {
	Niche              string  `json:"niche"`
	Records            int     `json:"records"`
	Pessimized         int     `json:"pessimized"`
	PessimizationRate  float64 `json:"pessimization_rate"`
	AvgDailyInstalls   float64 `json:"avg_daily_installs"`
	AvgPositionGain    float64 `json:"avg_position_gain"`
	RecentPessimized   bool    `json:"recent_pessimized"` // any in trailing 30 days
	SimilarVolumeRate  float64 `json:"similar_volume_rate"`
}
