// tokenboothctl es un cliente CLI para un broker corriendo.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

type client struct {
	BaseURL   string
	OutFormat string // "json" | "text"
	HTTP      *http.Client
}

func (c *client) do(method, path string, body []byte) (int, []byte, error) {
	url := strings.TrimRight(c.BaseURL, "/") + path
	req, err := http.NewRequest(method, url, bytes.NewReader(body))
	if err != nil {
		return 0, nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, b, nil
}

func (c *client) print(status int, body []byte) {
	if c.OutFormat == "json" {
		var v any
		if json.Unmarshal(body, &v) == nil {
			p, _ := json.MarshalIndent(v, "", "  ")
			fmt.Println(string(p))
			return
		}
	}
	if len(body) > 0 {
		fmt.Println(string(body))
	} else {
		fmt.Printf("status=%d\n", status)
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func main() {
	var (
		baseURL = envOr("TOKENBOOTH_URL", "http://localhost:3000")
		out     = envOr("TOKENBOOTH_OUT", "json")
	)

	root := &cobra.Command{
		Use:   "tokenboothctl",
		Short: "CLI cliente para el broker de tokens",
	}

	root.PersistentFlags().StringVar(&baseURL, "url", baseURL, "URL base del broker (env TOKENBOOTH_URL)")
	root.PersistentFlags().StringVar(&out, "out", out, "Formato de salida: json|text")

	cl := &client{HTTP: &http.Client{Timeout: 30 * time.Second}}

	// Los flags se leen después del parseo, no al armar el comando
	root.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		cl.BaseURL = baseURL
		cl.OutFormat = out
	}

	// token --name <name>: emite o reusa la credencial de un principal
	var name string
	tokenCmd := &cobra.Command{
		Use:   "token",
		Short: "Emitir (o reusar) el token de un principal",
		RunE: func(cmd *cobra.Command, args []string) error {
			if name == "" {
				return fmt.Errorf("falta --name")
			}
			body, _ := json.Marshal(map[string]string{"name": name})
			status, resp, err := cl.do("POST", "/generate-token", body)
			if err != nil {
				return err
			}
			if status/100 != 2 {
				return fmt.Errorf("status=%d body=%s", status, string(resp))
			}
			cl.print(status, resp)
			return nil
		},
	}
	tokenCmd.Flags().StringVar(&name, "name", "", "Nombre del principal")

	usersCmd := &cobra.Command{
		Use:   "users",
		Short: "Listar el contenido completo del store",
		RunE: func(cmd *cobra.Command, args []string) error {
			status, resp, err := cl.do("GET", "/all-users", nil)
			if err != nil {
				return err
			}
			cl.print(status, resp)
			return nil
		},
	}

	teamsCmd := &cobra.Command{
		Use:   "teams-token",
		Short: "Mostrar el token federado más reciente",
		RunE: func(cmd *cobra.Command, args []string) error {
			status, resp, err := cl.do("GET", "/teams-token", nil)
			if err != nil {
				return err
			}
			cl.print(status, resp)
			return nil
		},
	}

	root.AddCommand(tokenCmd, usersCmd, teamsCmd)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
