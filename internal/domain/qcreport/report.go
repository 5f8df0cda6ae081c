package qcreport

import "time"

// Verdict is the overall outcome of a QC test run.
type Verdict string

const (
	VerdictPass    Verdict = "PASS"
	VerdictWarning Verdict = "WARNING"
	VerdictFail    Verdict = "FAIL"
)

func (v Verdict) Valid() bool {
	switch v {
	case VerdictPass, VerdictWarning, VerdictFail:
		return true
	default:
		return false
	}
}

// Category names a required check or a soft signal; recommendations are keyed by it.
type Category string

const (
	CategoryHandshake    Category = "handshake"
	CategoryConverter    Category = "converter"
	CategoryIOSPackaging Category = "ios_packaging"
	CategoryIdempotency  Category = "idempotency"
	CategoryPerformance  Category = "performance"
	CategoryDevices      Category = "devices"
	CategorySDK          Category = "sdk"
)

// CheckResult is the raw outcome of one required sub-test, supplied by the test runner.
type CheckResult struct {
	Passed  bool     `json:"passed" yaml:"passed"`
	Details string   `json:"details,omitempty" yaml:"details,omitempty"`
	Issues  []string `json:"issues,omitempty" yaml:"issues,omitempty"`
}

type SDKTestCase struct {
	Name   string `json:"name" yaml:"name"`
	Passed bool   `json:"passed" yaml:"passed"`
}

type PerformanceMetrics struct {
	LoadTimeMs float64 `json:"loadTimeMs" yaml:"loadTimeMs"`
	FrameRate  float64 `json:"frameRate" yaml:"frameRate"`
	MemoryMB   float64 `json:"memoryMB" yaml:"memoryMB"`
}

type DeviceResult struct {
	Device string   `json:"device" yaml:"device"`
	Tested bool     `json:"tested" yaml:"tested"`
	Passed bool     `json:"passed" yaml:"passed"`
	Issues []string `json:"issues,omitempty" yaml:"issues,omitempty"`
}

// SubResults is everything a test run hands to the aggregator.
type SubResults struct {
	Handshake    CheckResult        `json:"handshake" yaml:"handshake"`
	Converter    CheckResult        `json:"converter" yaml:"converter"`
	IOSPackaging CheckResult        `json:"iosPackaging" yaml:"iosPackaging"`
	Idempotency  CheckResult        `json:"idempotency" yaml:"idempotency"`
	SDKTests     []SDKTestCase      `json:"sdkTests,omitempty" yaml:"sdkTests,omitempty"`
	Performance  PerformanceMetrics `json:"performance" yaml:"performance"`
	Devices      []DeviceResult     `json:"devices,omitempty" yaml:"devices,omitempty"`
}

type QAResults struct {
	Handshake    CheckResult `json:"handshake"`
	Converter    CheckResult `json:"converter"`
	IOSPackaging CheckResult `json:"iosPackaging"`
	Idempotency  CheckResult `json:"idempotency"`
}

type SDKSummary struct {
	Passed int `json:"passed"`
	Total  int `json:"total"`
}

// PassRate is passed/total, 0 for an empty suite.
func (s SDKSummary) PassRate() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Passed) / float64(s.Total)
}

// Report is produced once per test run and must not be mutated afterwards.
type Report struct {
	OverallResult       Verdict            `json:"overallResult"`
	QAResults           QAResults          `json:"qaResults"`
	SDKTestResults      SDKSummary         `json:"sdkTestResults"`
	PerformanceMetrics  PerformanceMetrics `json:"performanceMetrics"`
	DeviceCompatibility []DeviceResult     `json:"deviceCompatibility"`
	CriticalIssues      []string           `json:"criticalIssues"`
	Warnings            []string           `json:"warnings"`
	Recommendations     []string           `json:"recommendations"`
	Thresholds          Thresholds         `json:"thresholds"`
	GeneratedAt         time.Time          `json:"generatedAt"`
}
