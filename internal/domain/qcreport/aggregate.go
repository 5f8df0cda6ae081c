package qcreport

import (
	"fmt"
	"strings"
	"time"
)

// Thresholds bound the performance metrics; a breach is a warning, never a failure.
type Thresholds struct {
	MaxLoadTimeMs float64 `json:"maxLoadTimeMs" toml:"max_load_time_ms"`
	MinFrameRate  float64 `json:"minFrameRate" toml:"min_frame_rate"`
	MaxMemoryMB   float64 `json:"maxMemoryMB" toml:"max_memory_mb"`
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		MaxLoadTimeMs: 3000,
		MinFrameRate:  30,
		MaxMemoryMB:   256,
	}
}

var recommendations = map[Category]string{
	CategoryHandshake:    "Initialize the platform SDK before the first frame and answer the host handshake within the timeout.",
	CategoryConverter:    "Re-export the build with the supported engine template so the converter can repackage it.",
	CategoryIOSPackaging: "Provide every required iOS icon and launch asset at the expected resolutions.",
	CategoryIdempotency:  "Make game start and resume safe to call repeatedly; avoid duplicated state on reload.",
	CategoryPerformance:  "Compress textures and audio, lazy-load levels and profile the main loop on low-end devices.",
	CategoryDevices:      "Review the reported device issues and test on the failing device classes before resubmitting.",
	CategorySDK:          "Fix the failing SDK integration cases; they usually point at missing event callbacks.",
}

// Recommendation returns the static advice for category.
func Recommendation(c Category) string {
	return recommendations[c]
}

type requiredCheck struct {
	category Category
	label    string
	result   CheckResult
}

// AggregateDefault aggregates with DefaultThresholds.
func AggregateDefault(in SubResults, now time.Time) Report {
	return Aggregate(in, DefaultThresholds(), now)
}

// Aggregate folds the sub-test outcomes into a single verdict: FAIL when a required
// check failed, WARNING when a device or performance signal is off, PASS otherwise.
func Aggregate(in SubResults, t Thresholds, now time.Time) Report {
	report := Report{
		QAResults: QAResults{
			Handshake:    cloneCheck(in.Handshake),
			Converter:    cloneCheck(in.Converter),
			IOSPackaging: cloneCheck(in.IOSPackaging),
			Idempotency:  cloneCheck(in.Idempotency),
		},
		PerformanceMetrics:  in.Performance,
		DeviceCompatibility: cloneDevices(in.Devices),
		CriticalIssues:      []string{},
		Warnings:            []string{},
		Recommendations:     []string{},
		Thresholds:          t,
		GeneratedAt:         now.UTC(),
	}

	failedCategories := make([]Category, 0, 4)
	seenCategory := make(map[Category]bool)
	markFailed := func(c Category) {
		if !seenCategory[c] {
			seenCategory[c] = true
			failedCategories = append(failedCategories, c)
		}
	}

	required := []requiredCheck{
		{CategoryHandshake, "SDK handshake", in.Handshake},
		{CategoryConverter, "Build conversion", in.Converter},
		{CategoryIOSPackaging, "iOS packaging assets", in.IOSPackaging},
		{CategoryIdempotency, "Idempotency", in.Idempotency},
	}
	hardFail := false
	for _, check := range required {
		if check.result.Passed {
			continue
		}
		hardFail = true
		markFailed(check.category)
		msg := check.label + " failed"
		if d := strings.TrimSpace(check.result.Details); d != "" {
			msg += ": " + d
		}
		report.CriticalIssues = append(report.CriticalIssues, msg)
		for _, issue := range check.result.Issues {
			if s := strings.TrimSpace(issue); s != "" {
				report.CriticalIssues = append(report.CriticalIssues, fmt.Sprintf("%s: %s", check.label, s))
			}
		}
	}

	softFail := false
	for _, d := range in.Devices {
		if !d.Tested || d.Passed {
			continue
		}
		softFail = true
		markFailed(CategoryDevices)
		msg := fmt.Sprintf("Device %s failed compatibility testing", d.Device)
		if len(d.Issues) > 0 {
			msg += ": " + strings.Join(d.Issues, "; ")
		}
		report.Warnings = append(report.Warnings, msg)
	}

	for _, breach := range performanceBreaches(in.Performance, t) {
		softFail = true
		markFailed(CategoryPerformance)
		report.Warnings = append(report.Warnings, breach)
	}

	for _, tc := range in.SDKTests {
		report.SDKTestResults.Total++
		if tc.Passed {
			report.SDKTestResults.Passed++
		}
	}
	if report.SDKTestResults.Passed < report.SDKTestResults.Total {
		markFailed(CategorySDK)
	}

	for _, c := range failedCategories {
		if advice := Recommendation(c); advice != "" {
			report.Recommendations = append(report.Recommendations, advice)
		}
	}

	switch {
	case hardFail:
		report.OverallResult = VerdictFail
	case softFail:
		report.OverallResult = VerdictWarning
	default:
		report.OverallResult = VerdictPass
	}
	return report
}

func performanceBreaches(m PerformanceMetrics, t Thresholds) []string {
	var out []string
	if t.MaxLoadTimeMs > 0 && m.LoadTimeMs > t.MaxLoadTimeMs {
		out = append(out, fmt.Sprintf("Load time %.0fms exceeds %.0fms", m.LoadTimeMs, t.MaxLoadTimeMs))
	}
	// A zero frame rate means the runner did not measure it.
	if t.MinFrameRate > 0 && m.FrameRate > 0 && m.FrameRate < t.MinFrameRate {
		out = append(out, fmt.Sprintf("Frame rate %.1ffps is below %.1ffps", m.FrameRate, t.MinFrameRate))
	}
	if t.MaxMemoryMB > 0 && m.MemoryMB > t.MaxMemoryMB {
		out = append(out, fmt.Sprintf("Memory usage %.0fMB exceeds %.0fMB", m.MemoryMB, t.MaxMemoryMB))
	}
	return out
}

func cloneCheck(c CheckResult) CheckResult {
	if c.Issues != nil {
		c.Issues = append([]string(nil), c.Issues...)
	}
	return c
}

func cloneDevices(in []DeviceResult) []DeviceResult {
	out := make([]DeviceResult, 0, len(in))
	for _, d := range in {
		if d.Issues != nil {
			d.Issues = append([]string(nil), d.Issues...)
		}
		out = append(out, d)
	}
	return out
}
