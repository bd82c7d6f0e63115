package wasmtimehost

import "math"

func toInt32(v interface{}) int32     { return v.(int32) }
func toInt64(v interface{}) int64     { return v.(int64) }
func toFloat32(v interface{}) float32 { return v.(float32) }
func toFloat64(v interface{}) float64 { return v.(float64) }

func float32bits(f float32) uint32    { return math.Float32bits(f) }
func float64bits(f float64) uint64    { return math.Float64bits(f) }
func float32frombits(b uint32) float32 { return math.Float32frombits(b) }
func float64frombits(b uint64) float64 { return math.Float64frombits(b) }
