package utils

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"s3cleanup/internal/errs"
	"s3cleanup/internal/models"
)

func PrintJSON(data interface{}) error {
	return FprintJSON(os.Stdout, data)
}

func FprintJSON(w io.Writer, data interface{}) error {
	jsonOutput, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	fmt.Fprintln(w, string(jsonOutput))
	return nil
}

// PrintError writes err as a JSON ErrorResponse to w. Step, bucket and exit
// code are filled in when err is an *errs.Error.
func PrintError(w io.Writer, err error, command string) {
	errorResp := models.ErrorResponse{
		Error:     err.Error(),
		Timestamp: FormatTime(time.Now()),
		Command:   command,
		ExitCode:  errs.ExitCode(err),
	}
	var e *errs.Error
	if errors.As(err, &e) {
		errorResp.Step = e.Step
		errorResp.Bucket = e.Bucket
	}

	if err := FprintJSON(w, errorResp); err != nil {
		slog.Error("Failed to print error in JSON format", "error", err)
		fmt.Fprintln(w, "Error: ", errorResp)
	}
}

func FormatTime(t time.Time) string {
	return t.Format(time.RFC3339)
}
