package ffi

// Logger is an optional diagnostic hook a ClosureEngine invokes at each
// stage of a closure's lifetime: allocation, preparation, dispatch, and
// release. The default, installed by NewEngineConfig, is a no-op.
type Logger func(format string, args ...interface{})

// EngineConfig controls the optional behavior of a closure engine
// (wasihost.ClosureEngine or jshost.ClosureEngine), with the default
// implementation NewEngineConfig. Every With* method returns a new
// EngineConfig rather than mutating the receiver.
type EngineConfig struct {
	logger  Logger
	maxArgs uint32
}

// engineLessConfig helps avoid copy/pasting the wrong defaults.
var engineLessConfig = &EngineConfig{
	logger:  func(string, ...interface{}) {},
	maxArgs: MaxArgs,
}

// NewEngineConfig returns an EngineConfig with defaults: a no-op Logger
// and MaxArgs as the argument-count ceiling a closure engine enforces.
func NewEngineConfig() *EngineConfig {
	return engineLessConfig.clone()
}

// clone ensures all fields are copied even if nil.
func (c *EngineConfig) clone() *EngineConfig {
	return &EngineConfig{logger: c.logger, maxArgs: c.maxArgs}
}

// WithLogger returns a copy of c that invokes logger for every closure
// lifecycle event. A nil logger restores the no-op default.
func (c *EngineConfig) WithLogger(logger Logger) *EngineConfig {
	if logger == nil {
		logger = engineLessConfig.logger
	}
	ret := c.clone()
	ret.logger = logger
	return ret
}

// WithMaxArgs returns a copy of c that rejects CIFs whose NArgs exceeds
// maxArgs, lowering the ceiling below the package-wide MaxArgs.
func (c *EngineConfig) WithMaxArgs(maxArgs uint32) *EngineConfig {
	ret := c.clone()
	ret.maxArgs = maxArgs
	return ret
}

// Logger returns the configured diagnostic hook, never nil.
func (c *EngineConfig) Logger() Logger {
	return c.logger
}

// MaxArgs returns the configured argument-count ceiling.
func (c *EngineConfig) MaxArgs() uint32 {
	return c.maxArgs
}
