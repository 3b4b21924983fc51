package rfmsync

import "github.com/oberon-rt/rfmsync/internal/constants"

// Re-export constants for public API
const (
	HeaderSize                  = constants.HeaderSize
	CounterWordSize             = constants.CounterWordSize
	MaxHosts                    = constants.MaxHosts
	DefaultMasterStepMaxRetries = constants.DefaultMasterStepMaxRetries
	DefaultDownSampleFactor     = constants.DefaultDownSampleFactor
	TailSlackTight              = constants.TailSlackTight
	TailSlackConservative       = constants.TailSlackConservative
)
