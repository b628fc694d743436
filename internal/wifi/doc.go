/*
Package wifi - station link lifecycle

Manager drives a Driver (the radio) through the station state machine:

	         StationStarted            GotIP
	Idle ------------------> Connecting -----> Connected
	                          |    ^  |            |
	                          |    +--+            | Disconnected
	                          |  Disconnected      | (retries resume)
	                          |  retries < max     v
	                          |               Connecting
	                          | Disconnected, retries == max
	                          v
	                        Failed (terminal)

ConnectAndWait blocks until the Connected or Failed bit of the manager's
event group is set. The bits are sticky.
*/
package wifi
