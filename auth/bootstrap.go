package auth

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// localHosts is the set of bind hosts considered "localhost" for the
// purposes of the startup-security check in spec section 4.2.
var localHosts = map[string]bool{
	"":          true,
	"localhost": true,
	"127.0.0.1": true,
	"::1":       true,
}

// IsLocalhost reports whether host (as configured via BIND_HOST, with any
// :port stripped by the caller) is a localhost address.
func IsLocalhost(host string) bool {
	return localHosts[host]
}

// Bootstrap enforces spec section 4.2's startup security rule: if bindHost
// is non-localhost and no key is configured, either generate one and
// atomically append it to envPath, or refuse to start if envPath already
// has an API_KEY= line.
//
// Returns the key to use (freshly generated, or unchanged if one was
// already configured / the host is localhost) and an error only in the
// refuse-to-start case.
func Bootstrap(configuredKey, bindHost, envPath string) (string, error) {
	if configuredKey != "" || IsLocalhost(bindHost) {
		return configuredKey, nil
	}

	hasKey, err := envHasAPIKey(envPath)
	if err != nil {
		return "", fmt.Errorf("auth: bootstrap: reading %s: %w", envPath, err)
	}
	if hasKey {
		return "", fmt.Errorf("auth: refusing to start: bind host %q is non-localhost, no API_KEY configured in the environment, and %s already contains an API_KEY= line", bindHost, envPath)
	}

	key, err := GenerateKey()
	if err != nil {
		return "", err
	}
	if err := appendAPIKeyLine(envPath, key); err != nil {
		return "", err
	}
	return key, nil
}

func envHasAPIKey(path string) (bool, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if strings.HasPrefix(line, "API_KEY=") {
			return true, nil
		}
	}
	return false, scanner.Err()
}

// appendAPIKeyLine appends "API_KEY=<key>\n" using a single
// O_WRONLY|O_CREAT|O_APPEND open, avoiding the TOCTOU window a
// stat-then-write pattern would introduce.
func appendAPIKeyLine(path, key string) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o600)
	if err != nil {
		return fmt.Errorf("auth: bootstrap: opening %s: %w", path, err)
	}
	defer f.Close()

	if _, err := f.WriteString(fmt.Sprintf("API_KEY=%s\n", key)); err != nil {
		return fmt.Errorf("auth: bootstrap: writing %s: %w", path, err)
	}
	return nil
}
