/*
Package server - single session TCP server of the bridge

One listening socket (SO_REUSEADDR, backlog 1) and a serial accept loop:
at most one peer is served at a time and the next accept only happens
after the current session has been shut down and closed.

	accept -> keep-alive -> session -> CloseWrite + Close -> accept ...

Two session policies exist, selected once in Options.Mode:

 1. ModeForward - the peer socket is written only by HandleByte, the
    ByteHandler handed to the scancode source. Bytes read from the peer
    are passed one at a time to Options.OnPeerByte.

 2. ModeEcho - bytes read from the peer are written back; producer bytes
    are dropped.

Bytes produced while no session is live are dropped without buffering.
*/
package server
