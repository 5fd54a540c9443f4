package notify

import (
	"fmt"
	"time"
)

// Plain-text notification bodies. Keep these boring: recipients are humans
// reading a pager or inbox.

func ErrorSubject(applicationName string) string {
	return fmt.Sprintf("Error Alert - %s", applicationName)
}

func ErrorBody(applicationName, errorMessage string) string {
	return fmt.Sprintf(
		"An error has been detected in your application: %s\n\n"+
			"Error Details:\n%s\n\n"+
			"Please investigate and resolve this issue as soon as possible.\n\n"+
			"Error Monitoring System",
		applicationName, errorMessage)
}

func AlertCreatedSubject(alertLevel string) string {
	return fmt.Sprintf("New Alert Created - %s Priority", alertLevel)
}

func AlertCreatedBody(alertLevel, alertMessage string) string {
	return fmt.Sprintf(
		"Alert Details:\n\n"+
			"Alert Level: %s\n"+
			"Message: %s\n\n"+
			"Please take appropriate action.",
		alertLevel, alertMessage)
}

func AlertResolvedSubject(alertLevel string) string {
	return fmt.Sprintf("Alert Resolved - %s Priority", alertLevel)
}

func AlertResolvedBody(alertLevel, alertMessage string, resolvedAt time.Time) string {
	return fmt.Sprintf(
		"Alert has been resolved:\n\n"+
			"Alert Level: %s\n"+
			"Message: %s\n"+
			"Resolved At: %s\n\n"+
			"The issue has been successfully resolved.",
		alertLevel, alertMessage, resolvedAt.UTC().Format(time.RFC3339))
}
