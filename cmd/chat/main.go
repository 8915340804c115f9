// Package main implements a terminal chat client for the BookBodh API.
package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
)

var (
	apiURL = flag.String("api", "http://localhost:8080", "BookBodh API base URL")
	book   = flag.String("book", "", "Restrict answers to one book title")
)

type chatRequest struct {
	Query string `json:"query"`
	Book  string `json:"book,omitempty"`
}

type chatResponse struct {
	Response string `json:"response"`
	Book     string `json:"book,omitempty"`
	Author   string `json:"author,omitempty"`
}

func main() {
	flag.Parse()

	boldGreen := color.New(color.FgGreen, color.Bold).SprintFunc()
	boldCyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	faint := color.New(color.Faint).SprintFunc()

	fmt.Println(boldGreen("BookBodh chat"))
	if *book != "" {
		fmt.Printf("Scoped to book: %s\n", boldCyan(*book))
	}
	fmt.Println("Type your question and press Enter. Type 'exit' or Ctrl-D to quit.")
	fmt.Println()

	client := &http.Client{Timeout: 90 * time.Second}
	scanner := bufio.NewScanner(os.Stdin)

	for {
		fmt.Print(boldGreen("You: "))
		if !scanner.Scan() {
			break
		}
		query := strings.TrimSpace(scanner.Text())
		if query == "" {
			continue
		}
		if query == "exit" || query == "quit" {
			break
		}

		answer, err := ask(client, query, *book)
		if err != nil {
			fmt.Println(color.RedString("error: %v", err))
			continue
		}

		fmt.Printf("%s %s\n", boldCyan("BookBodh:"), answer.Response)
		if answer.Book != "" {
			fmt.Println(faint(fmt.Sprintf("  — %s, %s", answer.Book, answer.Author)))
		}
		fmt.Println()
	}
}

func ask(client *http.Client, query, book string) (*chatResponse, error) {
	body, _ := json.Marshal(chatRequest{Query: query, Book: book})
	resp, err := client.Post(*apiURL+"/api/chat", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var e struct {
			Error string `json:"error"`
		}
		json.NewDecoder(resp.Body).Decode(&e)
		if e.Error != "" {
			return nil, fmt.Errorf("api: %s", e.Error)
		}
		return nil, fmt.Errorf("api: status %d", resp.StatusCode)
	}

	var answer chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&answer); err != nil {
		return nil, err
	}
	return &answer, nil
}
