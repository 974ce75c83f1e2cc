// Package sensor aggregates every driver service of the "sensor" device
// class into one catalogue and routes per-sensor operations and events.
//
// # Manager
//
// A Manager discovers services through a driver.Directory, binds each one
// through a driver.Binder and, on the first GetAllSensors call, asks every
// service for its sensor list (CmdGetInfoList). The replies are flattened
// into a catalogue in discovery order and a routing table mapping each
// sensor id to the service that reported it. Sensor ids must be unique
// across services.
//
// # Controller
//
// A Controller turns sensor-id addressed operations (Enable, Disable,
// SetBatch, SetMode, SetOption, ReadData) into CmdOps dispatches on the
// owning service, and turns raw driver events into Events carrying
// physical units, delivered to one of two callback slots.
//
// # Locking
//
// Registry state (services, catalogue, routes) is guarded by the manager's
// mutex. Event state (coefficients, callbacks) is guarded by the
// controller's event mutex. The two are never held at the same time, so
// sample delivery does not wait for discovery or command dispatch.
//
// # Wire Formats
//
// GET_INFO_LIST reply:
//
//	[u32 count][Buffer record]*count
//
// Each record is 84 bytes, little-endian: name[16] vendor[16]
// firmware[16] hardware[16] typeId:i32 sensorId:i32 maxRange:i32
// accuracy:i32 power:i32.
//
// OPS request:
//
//	[i32 sensorId][i32 subCommand]{args}
//
// Event payload:
//
//	[Buffer header(32)][Buffer samples(dataLen)]
//
// The header is sensorId:i32 version:i32 timestamp:i64 option:u32
// mode:i32 dataLen:u32 reserved:u32. Samples are dataLen/4 i32 values.
package sensor
