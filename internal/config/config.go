// Package config loads runtime configuration from defaults, an optional
// config file and IMPACT_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/signalsfoundry/impact-globe/internal/imagery"
	"github.com/signalsfoundry/impact-globe/internal/observability"
	"github.com/signalsfoundry/impact-globe/model"
)

// EnvPrefix is prepended to every environment override.
const EnvPrefix = "IMPACT"

// Config is the resolved runtime configuration.
type Config struct {
	Tier         model.DetailTier
	ProfilesFile string
	Seed         uint64

	FrameInterval time.Duration

	ImageryDir     string
	ImageryRemote  []string
	ImageryTimeout time.Duration

	MinIO       imagery.MinIOConfig
	MinIOBucket string

	ServerAddr  string
	MetricsAddr string

	Tracing observability.TracingConfig
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("detail.tier", string(model.TierHigh))
	v.SetDefault("detail.profiles_file", "")
	v.SetDefault("detail.seed", 1)
	v.SetDefault("frame.interval", "16ms")
	v.SetDefault("imagery.dir", "textures")
	v.SetDefault("imagery.sources", strings.Join(imagery.DefaultRemoteSources, ","))
	v.SetDefault("imagery.timeout", "10s")
	v.SetDefault("minio.endpoint", "")
	v.SetDefault("minio.access_key", "")
	v.SetDefault("minio.secret_key", "")
	v.SetDefault("minio.bucket", "textures")
	v.SetDefault("minio.use_ssl", false)
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.metrics_addr", "")
	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.exporter", "stdout")
	v.SetDefault("tracing.service_name", "impact-globe")
	v.SetDefault("tracing.endpoint", "")
	v.SetDefault("tracing.sample_ratio", 1.0)
}

// Load resolves configuration. path may be empty.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	ratio := v.GetFloat64("tracing.sample_ratio")
	if ratio < 0 || ratio > 1 {
		ratio = 1
	}
	interval := v.GetDuration("frame.interval")
	if interval <= 0 {
		return nil, fmt.Errorf("frame.interval must be positive, got %v", interval)
	}

	return &Config{
		Tier:           model.ParseDetailTier(v.GetString("detail.tier")),
		ProfilesFile:   v.GetString("detail.profiles_file"),
		Seed:           v.GetUint64("detail.seed"),
		FrameInterval:  interval,
		ImageryDir:     v.GetString("imagery.dir"),
		ImageryRemote:  splitList(v.GetString("imagery.sources")),
		ImageryTimeout: v.GetDuration("imagery.timeout"),
		MinIO: imagery.MinIOConfig{
			Endpoint:  v.GetString("minio.endpoint"),
			AccessKey: v.GetString("minio.access_key"),
			SecretKey: v.GetString("minio.secret_key"),
			UseSSL:    v.GetBool("minio.use_ssl"),
		},
		MinIOBucket: v.GetString("minio.bucket"),
		ServerAddr:  v.GetString("server.addr"),
		MetricsAddr: v.GetString("server.metrics_addr"),
		Tracing: observability.TracingConfig{
			Enabled:     v.GetBool("tracing.enabled"),
			ServiceName: v.GetString("tracing.service_name"),
			Exporter:    strings.ToLower(v.GetString("tracing.exporter")),
			Endpoint:    v.GetString("tracing.endpoint"),
			SampleRatio: ratio,
		},
	}, nil
}

// Profiles returns the tier table, applying ProfilesFile overrides when
// set.
func (c *Config) Profiles() (map[model.DetailTier]model.DetailProfile, error) {
	profiles := model.DefaultProfiles()
	if c.ProfilesFile == "" {
		return profiles, nil
	}
	f, err := os.Open(c.ProfilesFile)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	if profiles, err = LoadProfiles(f, profiles); err != nil {
		return nil, fmt.Errorf("%s: %w", c.ProfilesFile, err)
	}
	return profiles, nil
}

// Profile returns the active detail profile.
func (c *Config) Profile() (model.DetailProfile, error) {
	profiles, err := c.Profiles()
	if err != nil {
		return model.DetailProfile{}, err
	}
	return profiles[c.Tier], nil
}

// ImageryChain returns the ordered imagery sources for profile. The
// object store is consulted before the local directory when configured.
func (c *Config) ImageryChain(profile model.DetailProfile) []string {
	var out []string
	if c.MinIO.Endpoint != "" && c.MinIOBucket != "" {
		out = append(out, imagery.Chain(profile, "minio://"+c.MinIOBucket, nil)...)
	}
	return append(out, imagery.Chain(profile, c.ImageryDir, c.ImageryRemote)...)
}

// LoadProfiles overlays YAML tier tables onto base. Tiers and fields
// absent from the document keep their base values.
func LoadProfiles(r io.Reader, base map[model.DetailTier]model.DetailProfile) (map[model.DetailTier]model.DetailProfile, error) {
	out := make(map[model.DetailTier]model.DetailProfile, len(base))
	for k, p := range base {
		out[k] = p
	}

	var doc map[string]yaml.Node
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		return nil, fmt.Errorf("decode profiles: %w", err)
	}
	for name, node := range doc {
		tier := model.DetailTier(strings.ToLower(name))
		p, ok := out[tier]
		if !ok {
			return nil, fmt.Errorf("unknown detail tier %q", name)
		}
		if err := node.Decode(&p); err != nil {
			return nil, fmt.Errorf("tier %s: %w", name, err)
		}
		p.Tier = tier
		out[tier] = p
	}
	return out, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
