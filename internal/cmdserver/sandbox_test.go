package cmdserver

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateAllowsPlainCode(t *testing.T) {
	r := NewPythonRunner(SandboxConfig{}, nil)

	for _, code := range []string{
		"print(2 + 2)",
		"x = [i * i for i in range(10)]\nprint(sum(x))",
		"def fib(n):\n    a, b = 0, 1\n    for _ in range(n):\n        a, b = b, a + b\n    return a\nprint(fib(10))",
		"evaluation = 1\nprint(evaluation)", // identifier containing a blocked name
		"print('important')",
	} {
		assert.NoError(t, r.Validate(code), code)
	}
}

func TestValidateRejectsUnsafeCode(t *testing.T) {
	r := NewPythonRunner(SandboxConfig{}, nil)

	cases := []struct {
		code string
		msg  string
	}{
		{"import os", "imports are not allowed"},
		{"  import subprocess", "imports are not allowed"},
		{"from os import path", "imports are not allowed"},
		{"__import__('os')", "imports are not allowed"},
		{"exec('print(1)')", "call to 'exec' is not allowed"},
		{"eval('1+1')", "call to 'eval' is not allowed"},
		{"compile('x', '<s>', 'exec')", "call to 'compile' is not allowed"},
		{"open('/etc/passwd')", "call to 'open' is not allowed"},
		{"", "code is empty"},
		{"   \n\t", "code is empty"},
	}
	for _, tc := range cases {
		err := r.Validate(tc.code)
		assert.EqualError(t, err, tc.msg, tc.code)
	}
}

func TestSandboxConfigDefaults(t *testing.T) {
	r := NewPythonRunner(SandboxConfig{}, nil)
	assert.Equal(t, "python3", r.config.PythonBin)
	assert.Equal(t, DefaultSandboxConfig().Timeout, r.config.Timeout)
	assert.Equal(t, 1024*1024, r.config.MaxOutputBytes)
}

func TestLastLine(t *testing.T) {
	stderr := "Traceback (most recent call last):\n  File \"<string>\", line 1, in <module>\nZeroDivisionError: division by zero\n"
	assert.Equal(t, "ZeroDivisionError: division by zero", lastLine(stderr))
	assert.Equal(t, "", lastLine("  \n \n"))
}
