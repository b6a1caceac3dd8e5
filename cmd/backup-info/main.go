// backup-info connects to a device backup service, negotiates the
// protocol version and prints the reply to an Info request.
//
// Usage:
//
//	backup-info -addr <host> -port <port> -target <device-id> [-source <backup-id>]
package main

import (
	"flag"
	"fmt"
	"log"

	"github.com/devlink-go/backup2/examples/backupclient"
	"github.com/devlink-go/backup2/pkg/plist"
	"github.com/pion/logging"
)

func main() {
	addr := flag.String("addr", "127.0.0.1", "device service host")
	port := flag.Uint("port", 6107, "device service port")
	target := flag.String("target", "", "target device identifier (required)")
	source := flag.String("source", "", "source backup set identifier")
	flag.Parse()

	if *target == "" {
		log.Fatal("missing required -target flag")
	}

	session, err := backupclient.Dial(backupclient.Options{
		Host:          *addr,
		Port:          uint16(*port),
		Target:        *target,
		Source:        *source,
		LoggerFactory: logging.NewDefaultLoggerFactory(),
	})
	if err != nil {
		log.Fatalf("Failed to open backup session: %v", err)
	}
	defer session.Close()

	fmt.Printf("negotiated protocol version %g\n", session.ProtocolVersion())

	info, err := session.Info()
	if err != nil {
		log.Fatalf("Info request failed: %v", err)
	}
	printValue(info, 0)
}

func printValue(v plist.Value, indent int) {
	pad := ""
	for i := 0; i < indent; i++ {
		pad += "  "
	}
	switch t := v.(type) {
	case *plist.Dict:
		for _, k := range t.Keys() {
			item, _ := t.Get(k)
			fmt.Printf("%s%s:\n", pad, k)
			printValue(item, indent+1)
		}
	case *plist.Array:
		for i := 0; i < t.Len(); i++ {
			printValue(t.At(i), indent)
		}
	default:
		fmt.Printf("%s%v\n", pad, t)
	}
}
