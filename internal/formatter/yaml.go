package formatter

import (
	"fmt"
	"strings"

	"github.com/desertthunder/joip/internal/models"
	"github.com/desertthunder/joip/internal/shared"
	"gopkg.in/yaml.v2"
)

// SessionFile is the on-disk layout of `joip sessions export`.
type SessionFile struct {
	Version  int               `yaml:"version"`
	Sessions []*models.Session `yaml:"sessions"`
}

const sessionFileVersion = 1

// SessionsToYAML encodes sessions into a versioned YAML document.
func SessionsToYAML(sessions []*models.Session) ([]byte, error) {
	if sessions == nil {
		sessions = []*models.Session{}
	}
	data, err := yaml.Marshal(SessionFile{Version: sessionFileVersion, Sessions: sessions})
	if err != nil {
		return nil, fmt.Errorf("failed to encode sessions: %w", err)
	}
	return data, nil
}

// SessionsFromYAML decodes a session file, normalizing channels and applying defaults.
// Every session is validated; the first invalid one fails the whole import.
func SessionsFromYAML(data []byte) ([]*models.Session, error) {
	var file SessionFile
	if err := yaml.UnmarshalStrict(data, &file); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}
	if file.Version > sessionFileVersion {
		return nil, fmt.Errorf("%w: unsupported session file version %d", shared.ErrInvalidInput, file.Version)
	}

	for i, s := range file.Sessions {
		if s == nil {
			return nil, fmt.Errorf("%w: session %d is empty", shared.ErrInvalidInput, i+1)
		}

		s.Channels = models.ParseChannels(strings.Join(s.Channels, ","))
		s.ApplyDefaults()

		if err := s.Validate(); err != nil {
			return nil, fmt.Errorf("session %d (%s): %w", i+1, s.Title, err)
		}
	}
	return file.Sessions, nil
}
