// Package simdriver provides simulated sensor services for a driver.Host.
//
// Each configured service answers GET_INFO_LIST with its sensor records
// and OPS with enable, disable, batch, mode, option and read-data handling.
// An enabled sensor raises a sine-wave sample set on its endpoint every
// sampling interval. Services are described in YAML:
//
//	class: sensor
//	services:
//	  - name: imu
//	    sensors:
//	      - name: accel
//	        type: ACCELEROMETER
//	        id: 1
//	        axes: 3
//	        interval: 20ms
package simdriver
