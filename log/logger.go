package log

import (
	"os"
	"path/filepath"

	"github.com/medtrack/claims-app/conf"
	"github.com/sirupsen/logrus"
)

var (
	API     logrus.FieldLogger
	Auth    logrus.FieldLogger
	Request logrus.FieldLogger

	Client logrus.FieldLogger
)

func init() {
	API = Logger(logrus.New(), conf.GetEnv("CLAIMS_ERROR_LOG"),
		"api", conf.GetEnv("ENVIRONMENT"))
	Auth = Logger(logrus.New(), conf.GetEnv("CLAIMS_AUTH_LOG"),
		"api", conf.GetEnv("ENVIRONMENT"))
	Request = Logger(logrus.New(), conf.GetEnv("CLAIMS_REQUEST_LOG"),
		"api", conf.GetEnv("ENVIRONMENT"))

	Client = Logger(logrus.New(), conf.GetEnv("CLAIMS_CLIENT_LOG"),
		"client", conf.GetEnv("ENVIRONMENT"))
}

func Logger(logger *logrus.Logger, outputFile string,
	application, environment string) logrus.FieldLogger {

	if outputFile != "" {
		if file, err := os.OpenFile(filepath.Clean(outputFile), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0640); err == nil {
			logger.SetOutput(file)
		} else {
			logger.Infof("Could not open log file %s, falling back to stderr: %s",
				outputFile, err.Error())
		}
	}

	return logger.WithFields(logrus.Fields{
		"application": application,
		"environment": environment})
}
