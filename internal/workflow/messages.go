package workflow

import (
	"fmt"

	"projectflow/internal/model"
)

func createdMessage(kind model.Kind) string {
	return kind.Title() + " created successfully"
}

func updatedMessage(kind model.Kind) string {
	return kind.Title() + " updated successfully"
}

func deletedMessage(kind model.Kind) string {
	return kind.Title() + " deleted successfully"
}

// statusMessage reads e.g. "Task marked as in progress".
func statusMessage(kind model.Kind, status string) string {
	return fmt.Sprintf("%s marked as %s", kind.Title(), model.HumanStatus(status))
}

// statusFailure is deliberately generic; the cause goes to the log.
func statusFailure(kind model.Kind) string {
	return fmt.Sprintf("Failed to update %s status", kind)
}
