package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/mattn/go-shellwords"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	staticServerConfigKey = "staticserver"
	probeConfigKey        = "sshprobe"

	redacted = "<redacted>"
)

// Port and user applied to the probe target only after ssh config lookup,
// so an alias's Port and User are not masked.
const (
	DefaultProbePort = "22"
	DefaultProbeUser = "phil"
)

// DefaultProbeCommands is the survey run against the remote host, in order.
var DefaultProbeCommands = []string{
	"whoami",
	"hostname",
	"uname -a",
	"docker ps",
	"ps aux | grep ollama",
	"netstat -tlnp | grep 11434 || ss -tlnp | grep 11434",
	`curl -s http://localhost:11434/api/tags || echo "Ollama not responding on localhost:11434"`,
}

type StaticServerConfig struct {
	Host           string   `mapstructure:"host" yaml:"host"`
	Port           string   `mapstructure:"port" yaml:"port"`
	Root           string   `mapstructure:"root" yaml:"root"`
	ListExtensions []string `mapstructure:"list_extensions" yaml:"list_extensions"`
}

func (c StaticServerConfig) String() string {
	return dump(c)
}

// Validate checks the fields that would otherwise only fail once the
// listener is bound.
func (c StaticServerConfig) Validate() error {
	if err := validatePort(c.Port); err != nil {
		return err
	}
	if c.Root == "" {
		return fmt.Errorf("root directory not set")
	}
	return nil
}

type ProbeConfig struct {
	Host           string        `mapstructure:"host" yaml:"host"`
	Port           string        `mapstructure:"port" yaml:"port"`
	User           string        `mapstructure:"user" yaml:"user"`
	Password       string        `mapstructure:"password" yaml:"password"`
	Timeout        time.Duration `mapstructure:"timeout" yaml:"timeout"`
	KnownHostsFile string        `mapstructure:"known_hosts_file" yaml:"known_hosts_file"`
	SSHConfigFile  string        `mapstructure:"ssh_config_file" yaml:"ssh_config_file"`
	Commands       []string      `mapstructure:"commands" yaml:"commands"`
	Strict         bool          `mapstructure:"strict" yaml:"strict"`
}

func (c ProbeConfig) String() string {
	if c.Password != "" {
		c.Password = redacted
	}
	return dump(c)
}

func (c ProbeConfig) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("ssh host not set")
	}
	if c.Port != "" {
		if err := validatePort(c.Port); err != nil {
			return err
		}
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("invalid connect timeout: %v", c.Timeout)
	}
	if len(c.Commands) == 0 {
		return fmt.Errorf("no commands configured")
	}
	parser := shellwords.NewParser()
	for _, cmd := range c.Commands {
		if strings.TrimSpace(cmd) == "" {
			return fmt.Errorf("empty command in command list")
		}
		if _, err := parser.Parse(cmd); err != nil {
			return fmt.Errorf("failed to parse command %q: %w", cmd, err)
		}
	}
	return nil
}

// fileConfig mirrors the layout of config.yaml.
type fileConfig struct {
	StaticServer StaticServerConfig `mapstructure:"staticserver"`
	Probe        ProbeConfig        `mapstructure:"sshprobe"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault(staticServerConfigKey+".host", "")
	v.SetDefault(staticServerConfigKey+".port", "8000")
	v.SetDefault(staticServerConfigKey+".root", "/home/phil/webapp")
	v.SetDefault(staticServerConfigKey+".list_extensions", []string{".html", ".js", ".md"})

	v.SetDefault(probeConfigKey+".host", "108.178.153.147")
	v.SetDefault(probeConfigKey+".port", "")
	v.SetDefault(probeConfigKey+".user", "")
	v.SetDefault(probeConfigKey+".password", "")
	v.SetDefault(probeConfigKey+".timeout", 10*time.Second)
	v.SetDefault(probeConfigKey+".known_hosts_file", "")
	v.SetDefault(probeConfigKey+".ssh_config_file", "")
	v.SetDefault(probeConfigKey+".commands", DefaultProbeCommands)
	v.SetDefault(probeConfigKey+".strict", false)
}

// load reads `configFile` on top of the built-in defaults. An empty
// `configFile` yields the defaults plus environment overrides, e.g.
// SSHPROBE_PASSWORD or STATICSERVER_PORT.
func load(configFile string) (*fileConfig, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config: %v", err)
		}
	}

	var result fileConfig
	if err := v.Unmarshal(&result); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %v", err)
	}
	return &result, nil
}

func GetStaticServerConfig(configFile string) (*StaticServerConfig, error) {
	fc, err := load(configFile)
	if err != nil {
		return nil, err
	}
	return &fc.StaticServer, nil
}

func GetProbeConfig(configFile string) (*ProbeConfig, error) {
	fc, err := load(configFile)
	if err != nil {
		return nil, err
	}
	return &fc.Probe, nil
}

func validatePort(port string) error {
	p, err := strconv.Atoi(port)
	if err != nil {
		return fmt.Errorf("invalid port %q: %w", port, err)
	}
	if p < 0 || p > 65535 {
		return fmt.Errorf("port %d out of range", p)
	}
	return nil
}

func dump(v interface{}) string {
	out, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%+v", v)
	}
	return "{\n" + string(out) + "}"
}
