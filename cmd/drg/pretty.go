package main

import (
	"sort"
	"strings"
	"time"

	"github.com/whitekid/goxp/fx"

	"drg/client/common"
	"drg/client/registry"
	"drg/operation"
	"drg/outcome"
	"drg/pkg/helper"
	"drg/pkg/helper/x509x"
)

func prettyYAML[T any](v T) string {
	data, err := helper.MarshalYAML(v)
	if err != nil {
		return err.Error()
	}
	return strings.TrimRight(string(data), "\n")
}

func prettyLines(lines []string) string { return strings.Join(lines, "\n") }

func age(ts *common.Timestamp) string {
	if ts == nil {
		return ""
	}
	return ts.Age(time.Now())
}

func prettyResources(wide bool) func([]*common.Resource) string {
	return func(resources []*common.Resource) string {
		headers := []string{"NAME", "AGE"}
		if wide {
			headers = []string{"NAME", "UID", "LABELS", "AGE"}
		}

		return outcome.Table(headers, fx.Map(resources, func(r *common.Resource) []string {
			if !wide {
				return []string{r.Name(), age(r.Metadata.CreationTimestamp)}
			}
			return []string{r.Name(), r.Metadata.UID, labels(r.Metadata.Labels), age(r.Metadata.CreationTimestamp)}
		}))
	}
}

func labels(m map[string]string) string {
	pairs := fx.Map(fx.Keys(m), func(k string) string { return k + "=" + m[k] })
	sort.Strings(pairs)
	return strings.Join(pairs, ",")
}

func prettyContexts(contexts []*operation.ContextSummary) string {
	return outcome.Table([]string{"", "NAME", "URL", "DEFAULT APP"}, fx.Map(contexts, func(c *operation.ContextSummary) []string {
		return []string{fx.Ternary(c.Active, "*", ""), c.Name, c.CloudURL, c.DefaultApp}
	}))
}

func prettyMembers(members *registry.Members) string {
	users := fx.Keys(members.Members)
	sort.Strings(users)

	return outcome.Table([]string{"USER", "ROLE"}, fx.Map(users, func(user string) []string {
		return []string{user, string(members.Members[user].Role)}
	}))
}

func prettyTokens(tokens []*registry.AccessToken) string {
	return outcome.Table([]string{"PREFIX", "AGE", "DESCRIPTION"}, fx.Map(tokens, func(t *registry.AccessToken) []string {
		return []string{t.Prefix, age(t.Created), t.Description}
	}))
}

func prettyCreatedToken(t *registry.CreatedAccessToken) string {
	return "A new access token was created: " + t.Token + "\nStore it safely, it can not be shown again."
}

func prettyIssuedCert(c *operation.IssuedCert) string { return strings.TrimRight(c.String(), "\n") }

// prettyAnchors show certificate details of trust anchors in wide mode, PEM otherwise
func prettyAnchors(wide bool) func([]string) string {
	if !wide {
		return prettyLines
	}

	return func(anchors []string) string {
		return outcome.Table([]string{"SUBJECT", "ALGORITHM", "SERIAL", "NOT BEFORE", "NOT AFTER", "KEY USAGE"}, fx.Map(anchors, func(anchor string) []string {
			cert, err := x509x.ParseCertificate([]byte(anchor))
			if err != nil {
				return []string{err.Error(), "", "", "", "", ""}
			}

			return []string{
				cert.Subject.String(),
				cert.PublicKeyAlgorithm.String(),
				cert.SerialNumber.String(),
				cert.NotBefore.Format(time.RFC3339),
				cert.NotAfter.Format(time.RFC3339),
				strings.Join(append(x509x.KeyUsageToStr(cert.KeyUsage), x509x.ExtKeyUsageToStr(cert.ExtKeyUsage)...), ", "),
			}
		}))
	}
}
