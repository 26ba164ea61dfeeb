package humanoid

import (
	"context"
	"fmt"
	"os"
	"strings"

	jsoniter "github.com/json-iterator/go"

	"github.com/xkilldash9x/pagechain/api/schemas"
	"github.com/xkilldash9x/pagechain/internal/config"
)

// AnimationEnv is the environment variable EnvSource reads.
const AnimationEnv = "PAGECHAIN_ANIMATION"

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// AnimationSource supplies the process-wide animation configuration. It is consulted on every
// move so changes take effect without rebuilding the sequencer. ok is false when the source has
// no opinion, which lets FirstOf fall through to the next source.
type AnimationSource interface {
	Animation(ctx context.Context) (cfg schemas.AnimationConfig, ok bool, err error)
}

// StaticSource always returns the same configuration.
type StaticSource schemas.AnimationConfig

// Animation implements AnimationSource.
func (s StaticSource) Animation(context.Context) (schemas.AnimationConfig, bool, error) {
	return schemas.AnimationConfig(s), true, nil
}

// Disabled is a source that turns movement off.
var Disabled = StaticSource{Disabled: true}

// EnvSource reads the JSON form (false or an object) from an environment variable on every call.
// An unset or blank variable yields no opinion.
type EnvSource struct {
	// Key defaults to AnimationEnv.
	Key string
}

// Animation implements AnimationSource.
func (s EnvSource) Animation(context.Context) (schemas.AnimationConfig, bool, error) {
	key := s.Key
	if key == "" {
		key = AnimationEnv
	}
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return schemas.AnimationConfig{}, false, nil
	}
	var cfg schemas.AnimationConfig
	if err := json.Unmarshal([]byte(raw), &cfg); err != nil {
		return schemas.AnimationConfig{}, false, fmt.Errorf("humanoid: invalid %s: %w", key, err)
	}
	return cfg, true, nil
}

// ConfigSource reads the animation section of the application configuration on every call, so
// runtime setters (SetAnimationEnabled) are honoured.
type ConfigSource struct {
	Config config.Interface
}

// Animation implements AnimationSource.
func (s ConfigSource) Animation(context.Context) (schemas.AnimationConfig, bool, error) {
	if s.Config == nil {
		return schemas.AnimationConfig{}, false, nil
	}
	return s.Config.Animation().Schema(), true, nil
}

type firstOf []AnimationSource

// FirstOf returns a source that yields the answer of the first source with an opinion. Errors
// stop the search.
func FirstOf(sources ...AnimationSource) AnimationSource {
	return firstOf(sources)
}

func (f firstOf) Animation(ctx context.Context) (schemas.AnimationConfig, bool, error) {
	for _, src := range f {
		if src == nil {
			continue
		}
		cfg, ok, err := src.Animation(ctx)
		if err != nil {
			return schemas.AnimationConfig{}, false, err
		}
		if ok {
			return cfg, true, nil
		}
	}
	return schemas.AnimationConfig{}, false, nil
}
