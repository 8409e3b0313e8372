package main

import (
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

func adminURL(base, path string, q url.Values) string {
	u := strings.TrimRight(strings.TrimSpace(base), "/") + "/admin/v1/" + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	return u
}

// call sends one admin request and echoes the body; non-2xx exits 1.
func call(method, u string, timeout time.Duration) {
	req, err := http.NewRequest(method, u, nil)
	if err != nil {
		fail(1, "request:", err)
	}
	cl := &http.Client{Timeout: timeout}
	resp, err := cl.Do(req)
	if err != nil {
		fail(1, "request:", err)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	fmt.Println(strings.TrimSpace(string(b)))
	if resp.StatusCode/100 != 2 {
		os.Exit(1)
	}
}

func stateCmd(args []string) {
	fs := flag.NewFlagSet("state", flag.ExitOnError)
	baseURL := fs.String("url", "http://127.0.0.1:8080", "server base url")
	_ = fs.Parse(args)

	call(http.MethodGet, adminURL(*baseURL, "state", nil), 5*time.Second)
}

func saveCmd(args []string) {
	fs := flag.NewFlagSet("save", flag.ExitOnError)
	baseURL := fs.String("url", "http://127.0.0.1:8080", "server base url")
	blocking := fs.Bool("blocking", false, "wait until the ledger is on disk")
	_ = fs.Parse(args)

	q := url.Values{}
	if *blocking {
		q.Set("blocking", "1")
	}
	call(http.MethodPost, adminURL(*baseURL, "save", q), 30*time.Second)
}

func awardCmd(kind string, args []string) {
	fs := flag.NewFlagSet(kind, flag.ExitOnError)
	baseURL := fs.String("url", "http://127.0.0.1:8080", "server base url")
	user := fs.String("user", "", "user id")
	_ = fs.Parse(args)
	if strings.TrimSpace(*user) == "" {
		fail(2, "missing -user")
	}

	call(http.MethodPost, adminURL(*baseURL, kind, url.Values{"user": {*user}}), 5*time.Second)
}

func cashCmd(args []string) {
	fs := flag.NewFlagSet("cash", flag.ExitOnError)
	baseURL := fs.String("url", "http://127.0.0.1:8080", "server base url")
	user := fs.String("user", "", "user id")
	amount := fs.Int64("amount", 0, "coins to add (negative removes)")
	_ = fs.Parse(args)
	if strings.TrimSpace(*user) == "" || *amount == 0 {
		fail(2, "need -user and non-zero -amount")
	}

	q := url.Values{"user": {*user}, "amount": {strconv.FormatInt(*amount, 10)}}
	call(http.MethodPost, adminURL(*baseURL, "cash", q), 5*time.Second)
}

func reloadCmd(args []string) {
	fs := flag.NewFlagSet("reload", flag.ExitOnError)
	baseURL := fs.String("url", "http://127.0.0.1:8080", "server base url")
	_ = fs.Parse(args)

	call(http.MethodPost, adminURL(*baseURL, "reload", nil), 10*time.Second)
}
