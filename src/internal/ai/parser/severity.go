package parser

import "fmt"

// SeverityLevel 严重等级
type SeverityLevel string

const (
	SeverityCritical      SeverityLevel = "Critical"
	SeverityHigh          SeverityLevel = "High"
	SeverityMedium        SeverityLevel = "Medium"
	SeverityLow           SeverityLevel = "Low"
	SeverityInformational SeverityLevel = "Informational"
)

// Levels 报告中出现的固定顺序
var Levels = []SeverityLevel{
	SeverityCritical,
	SeverityHigh,
	SeverityMedium,
	SeverityLow,
	SeverityInformational,
}

// AuditSummary 审计报告的严重等级直方图
type AuditSummary struct {
	Critical      int  `json:"critical"`
	High          int  `json:"high"`
	Medium        int  `json:"medium"`
	Low           int  `json:"low"`
	Informational int  `json:"informational,omitempty"`
	Simulated     bool `json:"simulated,omitempty"` // simulate_findings 开启时生成的占位数据
}

// HasFindings Informational 不计入
func (s AuditSummary) HasFindings() bool {
	return s.Critical+s.High+s.Medium+s.Low > 0
}

func (s AuditSummary) String() string {
	return fmt.Sprintf("critical=%d high=%d medium=%d low=%d informational=%d", s.Critical, s.High, s.Medium, s.Low, s.Informational)
}

func (s *AuditSummary) set(level SeverityLevel, n int) {
	switch level {
	case SeverityCritical:
		s.Critical = n
	case SeverityHigh:
		s.High = n
	case SeverityMedium:
		s.Medium = n
	case SeverityLow:
		s.Low = n
	case SeverityInformational:
		s.Informational = n
	}
}
