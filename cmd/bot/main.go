package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"

	"github.com/gorilla/websocket"

	"procoin.app/internal/protocol"
)

func main() {
	var (
		url   = flag.String("url", "ws://localhost:8080/v1/ws", "ws url")
		user  = flag.String("user", "", "user id")
		name  = flag.String("name", "bot", "client name")
		token = flag.String("token", "", "HELLO auth token (optional)")
	)
	flag.Parse()

	logger := log.New(os.Stderr, "[bot] ", log.LstdFlags|log.Lmicroseconds)
	if *user == "" {
		logger.Fatalf("missing -user")
	}
	conn, _, err := websocket.DefaultDialer.Dial(*url, nil)
	if err != nil {
		logger.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	hello := protocol.HelloMsg{
		Type:            protocol.TypeHello,
		ProtocolVersion: protocol.Version,
		UserID:          *user,
		ClientName:      *name,
	}
	if *token != "" {
		hello.Auth = &protocol.HelloAuth{Token: *token}
	}
	if err := conn.WriteJSON(hello); err != nil {
		logger.Fatalf("send HELLO: %v", err)
	}
	var welcome protocol.WelcomeMsg
	if err := conn.ReadJSON(&welcome); err != nil {
		logger.Fatalf("read WELCOME: %v", err)
	}
	logger.Printf("WELCOME session=%s user=%s balance=%d items=%d", welcome.SessionID, welcome.UserID, welcome.Balance, welcome.Catalog.Items)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)
	go func() {
		<-stop
		_ = conn.Close()
		os.Exit(0)
	}()

	in := bufio.NewScanner(os.Stdin)
	seq := 0
	for in.Scan() {
		cmd, err := parseLine(in.Text())
		if err == errEmpty {
			continue
		}
		if err != nil {
			fmt.Println(err)
			continue
		}
		seq++
		cmd.ID = strconv.Itoa(seq)
		if err := conn.WriteJSON(cmd); err != nil {
			logger.Fatalf("send CMD: %v", err)
		}
		_, msg, err := conn.ReadMessage()
		if err != nil {
			logger.Fatalf("read: %v", err)
		}
		var res protocol.ResultMsg
		if err := json.Unmarshal(msg, &res); err != nil {
			logger.Printf("bad RESULT: %v", err)
			continue
		}
		printResult(res)
	}
}

func printResult(res protocol.ResultMsg) {
	if !res.OK {
		fmt.Printf("[%s] %s\n", res.Code, res.Message)
		return
	}
	if res.Message != "" {
		fmt.Println(res.Message)
	}
	if res.Text != "" {
		fmt.Println(res.Text)
	}
	for i, p := range res.Pages {
		if len(res.Pages) > 1 {
			fmt.Printf("-- page %d/%d --\n", i+1, len(res.Pages))
		}
		fmt.Println(p)
	}
}
