package monitoring

import (
	"fmt"
	"net/http"

	"github.com/newrelic/go-agent/v3/integrations/nrlogrus"
	"github.com/newrelic/go-agent/v3/newrelic"

	"github.com/medtrack/claims-app/conf"
	"github.com/medtrack/claims-app/log"
)

var a *apm

type apm struct {
	App *newrelic.Application
}

// WrapHandler names the route as a web transaction for the agent. Without a
// configured agent the handler passes through untouched.
func (a *apm) WrapHandler(pattern string, h http.HandlerFunc) (string, http.HandlerFunc) {
	if a.App != nil {
		return newrelic.WrapHandleFunc(a.App, pattern, h)
	}
	return pattern, h
}

func GetMonitor() *apm {
	if a == nil {
		target := conf.GetEnv("DEPLOYMENT_TARGET")
		if target == "" {
			target = "local"
		}
		license := conf.GetEnv("NEW_RELIC_LICENSE_KEY")
		app, err := newrelic.NewApplication(
			newrelic.ConfigAppName(fmt.Sprintf("claims-app-%s", target)),
			newrelic.ConfigLicense(license),
			newrelic.ConfigEnabled(license != ""),
			newrelic.ConfigLogger(nrlogrus.StandardLogger()),
		)
		if err != nil {
			log.API.Error(err)
		}
		a = &apm{
			App: app,
		}
	}
	return a
}
