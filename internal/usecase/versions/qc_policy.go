package versions

import (
	"errors"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"gamepub/internal/domain/qcreport"
	"gamepub/internal/errs"
)

type qcPolicyFile struct {
	Thresholds qcreport.Thresholds `toml:"thresholds"`
}

// LoadThresholds reads a QC policy file. Keys absent from the file keep their
// default value; an empty path yields the defaults.
//
//	[thresholds]
//	max_load_time_ms = 3000
//	min_frame_rate = 30
//	max_memory_mb = 256
func LoadThresholds(path string) (qcreport.Thresholds, error) {
	policy := qcPolicyFile{Thresholds: qcreport.DefaultThresholds()}
	path = strings.TrimSpace(path)
	if path == "" {
		return policy.Thresholds, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return qcreport.Thresholds{}, errs.Wrapf(err, "open qc policy %q", path)
	}
	defer f.Close()

	dec := toml.NewDecoder(f).DisallowUnknownFields()
	if err := dec.Decode(&policy); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return qcreport.Thresholds{}, errs.Wrapf(err, "qc policy %q: %s", path, strict.String())
		}
		return qcreport.Thresholds{}, errs.Wrapf(err, "decode qc policy %q", path)
	}

	t := policy.Thresholds
	if t.MaxLoadTimeMs < 0 || t.MinFrameRate < 0 || t.MaxMemoryMB < 0 {
		return qcreport.Thresholds{}, errs.New(errs.KindValidation, "qc thresholds must not be negative")
	}
	return t, nil
}
