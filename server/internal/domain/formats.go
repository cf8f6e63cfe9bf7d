package domain

import (
	"encoding/json"
	"fmt"
	"os"

	"debate-sim/server/internal/model"
)

// LoadFormats 从指定路径加载赛制数据。
func LoadFormats(path string) ([]model.DebateFormat, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read formats: %w", err)
	}

	var formats []model.DebateFormat
	if err := json.Unmarshal(data, &formats); err != nil {
		return nil, fmt.Errorf("parse formats: %w", err)
	}

	for _, f := range formats {
		if err := validateFormat(f); err != nil {
			return nil, fmt.Errorf("format %s: %w", f.FormatID, err)
		}
	}

	return formats, nil
}

// validateFormat 校验赛制定义的基本完整性。
func validateFormat(f model.DebateFormat) error {
	if f.FormatID == "" {
		return fmt.Errorf("format_id is required")
	}
	if len(f.SpeakingOrder) == 0 {
		return fmt.Errorf("speaking_order is required")
	}
	for _, role := range f.SpeakingOrder {
		alloc, ok := f.AllocationSec[role]
		if !ok || alloc <= 0 {
			return fmt.Errorf("role %s has no positive allocation", role)
		}
		// 保护窗口首尾各占一段，不能覆盖整个发言时间。
		if f.ProtectedWindowSec*2 >= alloc {
			return fmt.Errorf("protected window (%ds) too large for role %s allocation (%ds)",
				f.ProtectedWindowSec, role, alloc)
		}
	}
	if f.POITimeoutSec <= 0 {
		return fmt.Errorf("poi_timeout_sec must be positive")
	}
	return nil
}

// FindFormat 在已加载的赛制中查找指定 ID。
func FindFormat(formats []model.DebateFormat, formatID string) (model.DebateFormat, bool) {
	for _, f := range formats {
		if f.FormatID == formatID {
			return f, true
		}
	}
	return model.DebateFormat{}, false
}
