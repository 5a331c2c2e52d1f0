package config

// -----------------------------------------------------------------------------
// Embedded configuration
//
// Populate embeddedConfigs at build time (e.g. via code generation) or
// manually during development.
// Key: device ID (same value placed in ctx under CtxDeviceKey)
// Val: raw JSON bytes for that device
// -----------------------------------------------------------------------------

const cfgEnvNode = `{
  "hal": {
    "version": 1,
    "buses": [
      {"id": "i2c0", "type": "i2c", "impl": "tinygo", "params": {"freq_hz": 400000}}
    ],
    "devices": [
      {
        "id": "env0",
        "type": "hdc2080",
        "bus_ref": {"id": "i2c0", "type": "i2c"},
        "params": {"mode": "both", "period_ms": 2000, "int_pin": 6}
      }
    ]
  },
  "heartbeat": {
    "interval": 2
  }
}`

var embeddedConfigs = map[string][]byte{
	"envnode": []byte(cfgEnvNode),
}
