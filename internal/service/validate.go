package service

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/joshdurbin/ns-shortener/internal/domain"
)

const (
	maxURLLength       = 2048
	maxNamespaceLength = 64
	maxTags            = 20
	maxTagLength       = 50
)

// ValidateURL checks that target is an absolute http or https URL
func ValidateURL(target string) error {
	if target == "" {
		return fmt.Errorf("%w: URL is required", domain.ErrInvalidURL)
	}
	if len(target) > maxURLLength {
		return fmt.Errorf("%w: longer than %d characters", domain.ErrInvalidURL, maxURLLength)
	}

	parsedURL, err := url.ParseRequestURI(target)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidURL, err)
	}

	// Only allow HTTP and HTTPS schemes
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return fmt.Errorf("%w: only HTTP and HTTPS are supported", domain.ErrInvalidURL)
	}
	if parsedURL.Host == "" {
		return fmt.Errorf("%w: missing host", domain.ErrInvalidURL)
	}
	return nil
}

// ValidateNamespace checks the namespace identifier format
func ValidateNamespace(namespaceID string) error {
	if namespaceID == "" || len(namespaceID) > maxNamespaceLength {
		return fmt.Errorf("%w: namespace must be 1 to %d characters", domain.ErrInvalidRequest, maxNamespaceLength)
	}
	for _, c := range namespaceID {
		if !(c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c == '-' || c == '_') {
			return fmt.Errorf("%w: invalid namespace character %q", domain.ErrInvalidRequest, c)
		}
	}
	return nil
}

// validateTags bounds the tag set
func validateTags(tags []string) error {
	if len(tags) > maxTags {
		return fmt.Errorf("%w: at most %d tags", domain.ErrInvalidRequest, maxTags)
	}
	for _, t := range tags {
		if len(strings.TrimSpace(t)) > maxTagLength {
			return fmt.Errorf("%w: tag longer than %d characters", domain.ErrInvalidRequest, maxTagLength)
		}
	}
	return nil
}

// validateChanges checks an update before it reaches the store
func validateChanges(changes domain.URLChanges) error {
	if changes.IsEmpty() {
		return fmt.Errorf("%w: no changes supplied", domain.ErrInvalidRequest)
	}
	if changes.TargetURL != nil {
		if err := ValidateURL(*changes.TargetURL); err != nil {
			return err
		}
	}
	if changes.ClearExpiry && changes.ExpiresAt != nil {
		return fmt.Errorf("%w: cannot both set and clear the expiry", domain.ErrInvalidRequest)
	}
	if changes.Tags != nil {
		return validateTags(*changes.Tags)
	}
	return nil
}
