package cmn

import (
	"encoding/json"
	"os"
	"sync"
	"sync/atomic"
	"time"
	"unsafe"

	"github.com/golang/glog"
)

// ConfigOwner mirrors the teacher's GCO contract: config is swapped
// atomically under a transaction (BeginUpdate/CommitUpdate) and listeners
// learn about every change.
type (
	ConfigOwner interface {
		Get() *Config
		BeginUpdate() *Config
		CommitUpdate(config *Config)
		DiscardUpdate()

		Subscribe(cl ConfigListener)

		SetConfigFile(path string)
		GetConfigFile() string
	}

	ConfigListener interface {
		ConfigUpdate(oldConf, newConf *Config)
	}

	// ConfigCLI carries command-line overrides applied on top of the
	// on-disk config, the same way ais/daemon.go's cliVars.config does.
	ConfigCLI struct {
		ConfFile   string
		LogLevel   string
		FeatureSet string
	}
)

type globalConfigOwner struct {
	mtx       sync.Mutex
	c         unsafe.Pointer
	lmtx      sync.Mutex
	listeners []ConfigListener
	confFile  string
}

var (
	_   ConfigOwner = &globalConfigOwner{}
	GCO             = &globalConfigOwner{}
)

func init() {
	config := &Config{}
	config.setDefaults()
	atomic.StorePointer(&GCO.c, unsafe.Pointer(config))
}

func (gco *globalConfigOwner) Get() *Config {
	return (*Config)(atomic.LoadPointer(&gco.c))
}

// BeginUpdate starts a config transaction; must be followed by
// CommitUpdate or DiscardUpdate.
func (gco *globalConfigOwner) BeginUpdate() *Config {
	gco.mtx.Lock()
	config := &Config{}
	*config = *gco.Get()
	return config
}

func (gco *globalConfigOwner) CommitUpdate(config *Config) {
	oldConf := gco.Get()
	atomic.StorePointer(&GCO.c, unsafe.Pointer(config))
	gco.notifyListeners(oldConf)
	gco.mtx.Unlock()
}

func (gco *globalConfigOwner) DiscardUpdate() {
	gco.mtx.Unlock()
}

func (gco *globalConfigOwner) SetConfigFile(path string) {
	gco.mtx.Lock()
	gco.confFile = path
	gco.mtx.Unlock()
}

func (gco *globalConfigOwner) GetConfigFile() string {
	gco.mtx.Lock()
	defer gco.mtx.Unlock()
	return gco.confFile
}

func (gco *globalConfigOwner) notifyListeners(oldConf *Config) {
	gco.lmtx.Lock()
	newConf := gco.Get()
	for _, l := range gco.listeners {
		l.ConfigUpdate(oldConf, newConf)
	}
	gco.lmtx.Unlock()
}

func (gco *globalConfigOwner) Subscribe(cl ConfigListener) {
	gco.lmtx.Lock()
	gco.listeners = append(gco.listeners, cl)
	gco.lmtx.Unlock()
}

// Config is the subset of daemon-wide configuration the join subsystem
// and its ambient stack depend on. Real deployments carry far more
// (storage, networking knobs) but those belong to out-of-scope modules.
type Config struct {
	Confdir string  `json:"confdir"`
	Log     LogConf `json:"log"`

	Periodic PeriodConf  `json:"periodic"`
	Timeout  TimeoutConf `json:"timeout"`
	Join     JoinConf    `json:"join"`
}

type LogConf struct {
	Dir   string `json:"dir"`
	Level string `json:"level"`
}

type PeriodConf struct {
	RetrySyncTime time.Duration `json:"retry_sync_time"`
}

type TimeoutConf struct {
	CplaneOperation time.Duration `json:"cplane_operation"`
	MaxKeepalive    time.Duration `json:"max_keepalive"`
	CibQuery        time.Duration `json:"cib_query"`
}

// JoinConf holds the join-protocol-specific knobs: this daemon's
// advertised feature-set version and the oldest peer version that still
// gets a visible (non-quiet) nack.
type JoinConf struct {
	FeatureSet          string `json:"feature_set"`
	MinVocalNackVersion string `json:"min_vocal_nack_version"`
	RoundHistorySize    int    `json:"round_history_size"`
}

func (c *Config) setDefaults() {
	c.Periodic.RetrySyncTime = 30 * time.Second
	c.Timeout.CplaneOperation = 2 * time.Second
	c.Timeout.MaxKeepalive = 4 * time.Second
	c.Timeout.CibQuery = 120 * time.Second
	c.Join.FeatureSet = "3.19.0"
	c.Join.MinVocalNackVersion = "3.17.0"
	c.Join.RoundHistorySize = 16
	c.Log.Level = "3"
}

// LoadConfig reads a JSON config file into GCO, applying CLI overrides on
// top, the same two-stage pattern as ais/daemon.go's LoadConfig.
func LoadConfig(cli *ConfigCLI) (changed bool) {
	config := GCO.BeginUpdate()
	defer func() {
		if changed {
			GCO.CommitUpdate(config)
		} else {
			GCO.DiscardUpdate()
		}
	}()

	if cli.ConfFile != "" {
		b, err := os.ReadFile(cli.ConfFile)
		if err != nil {
			glog.Errorf("Failed to read config %q, err: %v", cli.ConfFile, err)
		} else if err := json.Unmarshal(b, config); err != nil {
			glog.Errorf("Failed to parse config %q, err: %v", cli.ConfFile, err)
		} else {
			changed = true
		}
		GCO.SetConfigFile(cli.ConfFile)
	}
	if cli.LogLevel != "" {
		config.Log.Level = cli.LogLevel
		changed = true
	}
	if cli.FeatureSet != "" {
		config.Join.FeatureSet = cli.FeatureSet
		changed = true
	}
	return
}

// LocalSave persists config back to disk, mirroring ais/daemon.go's
// "-persist" CLI flag behavior.
func LocalSave(path string, config *Config) error {
	b, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0644)
}
