package main

import (
	"flag"
	"fmt"
	"net"
	"os"
	"sort"

	"github.com/rs/zerolog"

	"github.com/Brownie44l1/classroom-http/internal/form"
	"github.com/Brownie44l1/classroom-http/internal/request"
	"github.com/Brownie44l1/classroom-http/internal/response"
	"github.com/Brownie44l1/classroom-http/internal/server"
)

// tcplistener accepts raw connections and prints each decoded request, for
// poking at the framer and decoder with curl or nc.
func main() {
	addr := flag.String("addr", ":42069", "address to listen on")
	level := flag.String("log-level", "info", "log level")
	flag.Parse()

	log, err := server.NewLogger(os.Stderr, *level, true)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	listener, err := net.Listen("tcp", *addr)
	if err != nil {
		log.Fatal().Err(err).Str("addr", *addr).Msg("listen failed")
	}
	defer listener.Close()
	log.Info().Str("addr", listener.Addr().String()).Msg("listening")

	for {
		conn, err := listener.Accept()
		if err != nil {
			log.Error().Err(err).Msg("accept error")
			continue
		}

		go handleConnection(conn, log)
	}
}

func handleConnection(conn net.Conn, log zerolog.Logger) {
	defer conn.Close()

	raw, err := request.ReadFrame(conn, request.DefaultLimits())
	if err != nil {
		log.Warn().Err(err).Msg("failed to read request")
		return
	}

	req, err := request.Decode(raw, conn)
	if err != nil {
		log.Warn().Err(err).Msg("failed to decode request")
		writeResult(conn, log, response.New(response.BadRequest, err.Error()+"\n"))
		return
	}

	fmt.Println("Request Line")
	fmt.Printf("Method: %s\n", req.Method)
	fmt.Printf("Route: %s\n", req.Route)
	fmt.Printf("Protocol: %s/%s\n", req.Protocol, req.ProtoVersion)

	fmt.Println("Parameters")
	for _, k := range sortedKeys(req.Parameters) {
		fmt.Printf("%s=%s\n", k, req.Parameters[k])
	}

	fmt.Println("Headers")
	for _, k := range sortedKeys(req.Headers) {
		fmt.Printf("%s: %s\n", k, req.Headers[k])
	}

	fmt.Println("Body")
	if dec, err := form.New(req); err == nil {
		fields, err := dec.Parse()
		if err != nil {
			fmt.Printf("multipart error: %v\n", err)
		}
		for _, f := range fields {
			if f.IsFile() {
				fmt.Printf("%s (file %q, %d bytes)\n", f.Name, f.Filename, len(f.Value))
				continue
			}
			fmt.Printf("%s=%s\n", f.Name, f.Value)
		}
	} else {
		fmt.Printf("%s\n", string(req.Body))
	}

	writeResult(conn, log, response.New(response.OK, "Hello from your HTTP server!\n"))
}

func writeResult(conn net.Conn, log zerolog.Logger, res response.Result) {
	if err := response.NewWriter(conn).WriteResult(res); err != nil {
		log.Debug().Err(err).Msg("write failed")
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
