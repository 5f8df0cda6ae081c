package versions

import (
	"sort"
	"strings"
	"time"

	"gamepub/internal/domain/version"
	"gamepub/internal/ports"
)

func (s *Service) nowUTCString() string {
	return s.now().UTC().Format(time.RFC3339Nano)
}

func cacheVersionStatusKey(versionID string) string {
	return "version_status:" + versionID
}

func normalizeTags(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, raw := range in {
		tag := strings.TrimSpace(raw)
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	return out
}

func toRecordMetadata(m Metadata) ports.VersionMetadata {
	return ports.VersionMetadata{
		Title:       strings.TrimSpace(m.Title),
		Description: strings.TrimSpace(m.Description),
		Grade:       strings.TrimSpace(m.Grade),
		Subject:     strings.TrimSpace(m.Subject),
		Skills:      normalizeTags(m.Skills),
		Themes:      normalizeTags(m.Themes),
		Level:       strings.TrimSpace(m.Level),
		LinkGithub:  strings.TrimSpace(m.LinkGithub),
	}
}

func fromRecordMetadata(m ports.VersionMetadata) Metadata {
	return Metadata{
		Title:       m.Title,
		Description: m.Description,
		Grade:       m.Grade,
		Subject:     m.Subject,
		Skills:      append([]string{}, m.Skills...),
		Themes:      append([]string{}, m.Themes...),
		Level:       m.Level,
		LinkGithub:  m.LinkGithub,
	}
}

func toSelfQA(r ports.SelfQARecord) version.SelfQAChecklist {
	return version.SelfQAChecklist{
		TestedDevices:    r.TestedDevices,
		TestedAudio:      r.TestedAudio,
		GameplayComplete: r.GameplayComplete,
		ContentVerified:  r.ContentVerified,
		Note:             r.Note,
	}
}

func fromSelfQA(c version.SelfQAChecklist) ports.SelfQARecord {
	return ports.SelfQARecord{
		TestedDevices:    c.TestedDevices,
		TestedAudio:      c.TestedAudio,
		GameplayComplete: c.GameplayComplete,
		ContentVerified:  c.ContentVerified,
		Note:             strings.TrimSpace(c.Note),
	}
}

func toGameDetail(g ports.GameRecord) GameDetail {
	return GameDetail(g)
}

func toVersionDetail(v ports.GameVersionRecord) VersionDetail {
	qa := toSelfQA(v.SelfQA)
	return VersionDetail{
		ID:               v.ID,
		GameID:           v.GameID,
		Version:          v.Version,
		Status:           version.Status(v.Status),
		StoragePath:      v.StoragePath,
		EntryFile:        v.EntryFile,
		Runtime:          v.Runtime,
		Metadata:         fromRecordMetadata(v.Metadata),
		SelfQA:           qa,
		SelfQAComplete:   version.ValidateSelfQA(qa),
		CreatedBy:        v.CreatedBy,
		LastCodeUpdateBy: v.LastCodeUpdateBy,
		LastCodeUpdateAt: v.LastCodeUpdateAt,
		CreatedAt:        v.CreatedAt,
		UpdatedAt:        v.UpdatedAt,
	}
}

// sortBySemverDesc orders newest version first; invalid strings sort last.
func sortBySemverDesc(items []VersionDetail) {
	sort.SliceStable(items, func(i, j int) bool {
		return version.CompareVersions(items[i].Version, items[j].Version) > 0
	})
}

func canAuthor(actor ports.Actor) bool {
	return version.HasRole(actor.Roles, version.RoleDeveloper) || actor.IsAdmin()
}
