package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-ini/ini"
)

const (
	// DefaultRegion is used when the AWS section does not name a region.
	DefaultRegion = "us-west-2"
	// DefaultPort is the port Redshift listens on unless configured otherwise.
	DefaultPort = 5439

	SectionAWS     = "AWS"
	SectionIAMRole = "IAM_ROLE"
	SectionCluster = "CLUSTER"
	SectionS3      = "S3"

	keyRoleARN     = "ARN"
	keyClusterHost = "HOST"
)

type AWS struct {
	Key    string `ini:"KEY"`
	Secret string `ini:"SECRET"`
	Region string `ini:"REGION"`
}

type IAMRole struct {
	Name string `ini:"DWH_IAM_ROLE_NAME"`
	// ARN is written back by the provisioner.
	ARN string `ini:"ARN"`
}

type Cluster struct {
	Type       string `ini:"DWH_CLUSTER_TYPE"`
	NumNodes   int    `ini:"DWH_NUM_NODES"`
	NodeType   string `ini:"DWH_NODE_TYPE"`
	Identifier string `ini:"DWH_CLUSTER_IDENTIFIER"`
	DBName     string `ini:"DWH_DB"`
	User       string `ini:"DWH_DB_USER"`
	Password   string `ini:"DWH_DB_PASSWORD"`
	Port       int    `ini:"DWH_PORT"`
	// Host is written back by the provisioner.
	Host string `ini:"HOST"`
}

type S3 struct {
	LogData     string `ini:"LOG_DATA"`
	LogJSONPath string `ini:"LOG_JSONPATH"`
	SongData    string `ini:"SONG_DATA"`
}

// Config is the full set of settings read from a dwh.cfg style INI file. It
// is passed by value between stages; outputs of provisioning are applied with
// WithRoleARN and WithClusterHost rather than mutated in place.
type Config struct {
	AWS     AWS
	IAMRole IAMRole
	Cluster Cluster
	S3      S3
}

// Stage names a part of the pipeline whose configuration requirements differ.
type Stage string

const (
	StageProvision Stage = "provision"
	StageWarehouse Stage = "warehouse"
	StageLoad      Stage = "load"
	StageTeardown  Stage = "teardown"
)

func loadOptions() ini.LoadOptions {
	return ini.LoadOptions{
		InsensitiveKeys: true,
		// dwh.cfg files commonly contain passwords with '#' and ';'
		IgnoreInlineComment: true,
	}
}

// Load reads the INI file at path.
func Load(path string) (Config, error) {
	f, err := ini.LoadSources(loadOptions(), path)
	if err != nil {
		return Config{}, fmt.Errorf("unable to read config file %s: %w", path, err)
	}
	return fromFile(f)
}

// Parse reads configuration from raw INI bytes.
func Parse(data []byte) (Config, error) {
	f, err := ini.LoadSources(loadOptions(), data)
	if err != nil {
		return Config{}, fmt.Errorf("unable to parse config: %w", err)
	}
	return fromFile(f)
}

func fromFile(f *ini.File) (Config, error) {
	var cfg Config
	sections := []struct {
		name string
		dst  interface{}
	}{
		{SectionAWS, &cfg.AWS},
		{SectionIAMRole, &cfg.IAMRole},
		{SectionCluster, &cfg.Cluster},
		{SectionS3, &cfg.S3},
	}
	for _, s := range sections {
		if !f.HasSection(s.name) {
			continue
		}
		if err := f.Section(s.name).MapTo(s.dst); err != nil {
			return Config{}, fmt.Errorf("invalid [%s] section: %w", s.name, err)
		}
	}
	cfg.normalize()
	return cfg, nil
}

func (c *Config) normalize() {
	if c.AWS.Region == "" {
		c.AWS.Region = DefaultRegion
	}
	if c.Cluster.Port == 0 {
		c.Cluster.Port = DefaultPort
	}
	// S3 URIs are often stored pre-quoted for direct use in COPY statements.
	c.S3.LogData = unquote(c.S3.LogData)
	c.S3.LogJSONPath = unquote(c.S3.LogJSONPath)
	c.S3.SongData = unquote(c.S3.SongData)
	c.IAMRole.ARN = unquote(c.IAMRole.ARN)
}

func unquote(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 && (s[0] == '\'' || s[0] == '"') && s[len(s)-1] == s[0] {
		return s[1 : len(s)-1]
	}
	return s
}

// WithRoleARN returns a copy of c with the IAM role ARN set.
func (c Config) WithRoleARN(arn string) Config {
	c.IAMRole.ARN = arn
	return c
}

// WithClusterHost returns a copy of c with the cluster endpoint host set.
func (c Config) WithClusterHost(host string) Config {
	c.Cluster.Host = host
	return c
}

// SaveOutputs writes the provisioner outputs (role ARN and cluster host) back
// into the INI file at path, leaving every other key untouched.
func SaveOutputs(path string, c Config) error {
	f, err := ini.LoadSources(loadOptions(), path)
	if err != nil {
		return fmt.Errorf("unable to read config file %s: %w", path, err)
	}
	f.Section(SectionIAMRole).Key(keyRoleARN).SetValue(c.IAMRole.ARN)
	f.Section(SectionCluster).Key(keyClusterHost).SetValue(c.Cluster.Host)
	if err := f.SaveTo(path); err != nil {
		return fmt.Errorf("unable to write config file %s: %w", path, err)
	}
	return nil
}

// Validate checks that every value the given stage reads is present.
func (c Config) Validate(stage Stage) error {
	var missing []string
	require := func(section, key, value string) {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, section+"."+key)
		}
	}

	switch stage {
	case StageProvision:
		require(SectionAWS, "REGION", c.AWS.Region)
		require(SectionIAMRole, "DWH_IAM_ROLE_NAME", c.IAMRole.Name)
		require(SectionCluster, "DWH_CLUSTER_TYPE", c.Cluster.Type)
		require(SectionCluster, "DWH_NODE_TYPE", c.Cluster.NodeType)
		require(SectionCluster, "DWH_CLUSTER_IDENTIFIER", c.Cluster.Identifier)
		require(SectionCluster, "DWH_DB", c.Cluster.DBName)
		require(SectionCluster, "DWH_DB_USER", c.Cluster.User)
		require(SectionCluster, "DWH_DB_PASSWORD", c.Cluster.Password)
		if c.Cluster.Type == "multi-node" && c.Cluster.NumNodes < 2 {
			return fmt.Errorf("%s.DWH_NUM_NODES must be at least 2 for a multi-node cluster, got %d", SectionCluster, c.Cluster.NumNodes)
		}
	case StageWarehouse:
		require(SectionCluster, "HOST", c.Cluster.Host)
		require(SectionCluster, "DWH_DB", c.Cluster.DBName)
		require(SectionCluster, "DWH_DB_USER", c.Cluster.User)
		require(SectionCluster, "DWH_DB_PASSWORD", c.Cluster.Password)
	case StageLoad:
		require(SectionAWS, "REGION", c.AWS.Region)
		require(SectionIAMRole, "ARN", c.IAMRole.ARN)
		require(SectionS3, "LOG_DATA", c.S3.LogData)
		require(SectionS3, "LOG_JSONPATH", c.S3.LogJSONPath)
		require(SectionS3, "SONG_DATA", c.S3.SongData)
	case StageTeardown:
		require(SectionAWS, "REGION", c.AWS.Region)
		require(SectionCluster, "DWH_CLUSTER_IDENTIFIER", c.Cluster.Identifier)
	default:
		return fmt.Errorf("unknown stage %q", stage)
	}

	if len(missing) != 0 {
		return &MissingError{Stage: stage, Keys: missing}
	}
	return nil
}

// MissingError reports configuration keys a stage needs but did not find.
type MissingError struct {
	Stage Stage
	Keys  []string
}

func (e *MissingError) Error() string {
	return fmt.Sprintf("config is missing values required for %s: %s", e.Stage, strings.Join(e.Keys, ", "))
}

// IsMissing reports whether err is a *MissingError.
func IsMissing(err error) bool {
	var me *MissingError
	return errors.As(err, &me)
}
