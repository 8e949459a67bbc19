/*
Package transport abstracts how commands run and bytes move to one host.

A Transport owns a single connection: the SSH implementation multiplexes
logical sessions over one ssh.Client, so a host checked against many rules
pays one TCP+auth handshake. File transfer rides an SFTP subsystem on the
same connection. Transports must survive idle periods between checks; a
connection failure mid-run is fatal for that host only.

# Architecture

	┌───────────────────── TRANSPORT ─────────────────────┐
	│                                                      │
	│  ┌──────────────────────────────────────────┐       │
	│  │             ssh.Client (one)              │       │
	│  │  - user@host[:port] or ssh_config alias   │       │
	│  │  - identity file / agent auth             │       │
	│  │  - strict known_hosts                     │       │
	│  └───────┬───────────────────────┬──────────┘       │
	│          │                       │                   │
	│  ┌───────▼────────┐     ┌────────▼────────┐         │
	│  │  ssh.Session   │     │   sftp.Client   │         │
	│  │  per command   │     │  lazily opened  │         │
	│  │  Run(argv)     │     │  Put/Stat       │         │
	│  └────────────────┘     └─────────────────┘         │
	└──────────────────────────────────────────────────────┘

Commands are argv-style: arguments are quoted individually before hitting
the remote shell, so there are no word-splitting surprises. Put creates
missing parent directories with mkdir -p before writing.

The transport also answers two host questions: ProbeAgent (is the agent
binary on PATH, with /opt/cook and ~/.cargo/bin included in the search) and
Platform (the arch-os-libc target triple, from uname plus a glibc probe).
*/
package transport
