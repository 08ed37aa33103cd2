package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidatePhone(t *testing.T) {
	valid := []string{"18988889999", "13100001111", "19912345678"}
	for _, phone := range valid {
		assert.NoError(t, ValidatePhone(phone), "phone %q", phone)
	}

	invalid := []string{
		"",
		"12345",
		"2198888889",   // does not start with 1
		"1898888999",   // too short
		"189888899990", // too long
		"1898888999a",
		"+8618988889999",
		"189 8888 9999",
	}
	for _, phone := range invalid {
		assert.Error(t, ValidatePhone(phone), "phone %q", phone)
	}
}
