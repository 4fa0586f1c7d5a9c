/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

/*
Package bridge implements a debugger-transport bridge between an embedded
scripting engine and one or more remote debugger front-ends connected over a
network socket.

# Architecture Overview

The bridge owns an auxiliary I/O thread that runs a socket server and
forwards traffic between the engine and the network in both directions
through two FIFO queues guarded by a single lock. The engine thread only
ever drains the incoming queue and appends to the outgoing queue; the I/O
thread only ever drains the outgoing queue and appends to the incoming
queue. Exactly one target is exposed per Bridge instance.

# Key Components

  - Bridge: owns the queue pair, the session table, and the lifecycle state machine
  - Agent: the engine-side collaborator a Bridge dispatches session traffic into
  - Server / ServerDelegate: the socket-facing collaborator and its callback surface
  - queue pair (queuepair.go): the two FIFOs plus the append/swap primitives

# Connection Flow

 1. Start spawns the I/O thread, which binds the configured host/port
 2. The socket server accepts a connection and calls ServerDelegate.StartSession
 3. The bridge attaches an engine-side session and accepts it on the wire
 4. Messages flow both ways through the queue pair until the session ends
 5. Stop tears down the server, joins the I/O thread, and flushes final state

# Wait-for-connect mode

When configured to wait for a connect, Start blocks until an incoming
message contains the literal substring "Runtime.runIfWaitingForDebugger",
at which point the engine's startup semaphore is posted exactly once.
*/
package bridge
