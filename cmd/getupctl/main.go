// getupctl is a thin HTTP client for getupd's loopback control API: it
// translates subcommands into requests against localhost:<port> and exits
// 0 whenever the request round-trips, regardless of the response status
// code (spec.md §6).
package main

import (
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

var (
	port    int
	host    string
	timeout time.Duration
)

func main() {
	flag.IntVar(&port, "port", 3000, "getupd control API port")
	flag.StringVar(&host, "host", "localhost", "getupd control API host")
	flag.DurationVar(&timeout, "timeout", 5*time.Second, "request timeout")
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		usage()
		os.Exit(2)
	}

	client := &http.Client{Timeout: timeout}
	base := fmt.Sprintf("http://%s:%d", host, port)

	var err error
	switch args[0] {
	case "units":
		err = get(client, base+"/units")
	case "unit":
		if len(args) != 2 {
			usage()
			os.Exit(2)
		}
		err = get(client, base+"/unit/"+args[1])
	case "start":
		if len(args) != 2 {
			usage()
			os.Exit(2)
		}
		err = post(client, base+"/unit/"+args[1]+"/start")
	case "stop":
		if len(args) != 2 {
			usage()
			os.Exit(2)
		}
		err = post(client, base+"/unit/"+args[1]+"/stop")
	case "restart":
		if len(args) != 2 {
			usage()
			os.Exit(2)
		}
		err = post(client, base+"/unit/"+args[1]+"/restart")
	case "reload":
		err = post(client, base+"/reload")
	case "shutdown":
		err = post(client, base+"/shutdown")
	default:
		usage()
		os.Exit(2)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "getupctl: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: getupctl [-host H] [-port P] <units|unit NAME|start NAME|stop NAME|restart NAME|reload|shutdown>")
}

// get issues a GET and prints the response body. A network failure (not a
// non-2xx status) is the only thing that produces a non-zero exit code.
func get(client *http.Client, url string) error {
	resp, err := client.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return printBody(resp)
}

// post issues an empty POST and prints the response body, matching the
// fire-and-forget semantics of the control endpoints.
func post(client *http.Client, url string) error {
	resp, err := client.Post(url, "application/octet-stream", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return printBody(resp)
}

func printBody(resp *http.Response) error {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 400 {
		fmt.Fprintf(os.Stderr, "%s: %s\n", resp.Status, body)
		return nil
	}
	fmt.Printf("%s\n", body)
	return nil
}
