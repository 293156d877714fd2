// Copyright (C) 2020 Markus L. Noga
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

// Package internal holds the process-wide log sink, imported as nl.
package internal

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sync"
)

// Singleton log writer. Writes to stdout, and optionally to a file.
// Does not add prefixes, or force newlines.

var logMutex sync.Mutex

// The optional additional file to log into
var logFile *bufio.Writer
var logFileOS *os.File

// Standard output, replaceable for tests
var logStdout io.Writer = os.Stdout

// Enables logging to file. Closes any previous log file
func LogAlsoToFile(fileName string) (err error) {
	logMutex.Lock()
	defer logMutex.Unlock()
	if err = closeLogFile(); err != nil {
		return err
	}
	f, err := os.OpenFile(fileName, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0666)
	if err != nil {
		return err
	}
	logFileOS, logFile = f, bufio.NewWriter(f)
	return nil
}

// Stops logging to file. Flushes and closes the current log file, if any
func LogCloseFile() error {
	logMutex.Lock()
	defer logMutex.Unlock()
	return closeLogFile()
}

func closeLogFile() error {
	if logFile == nil {
		return nil
	}
	err := logFile.Flush()
	if errClose := logFileOS.Close(); err == nil {
		err = errClose
	}
	logFile, logFileOS = nil, nil
	return err
}

// Writer teeing into stdout and the optional log file
type logWriter struct{}

func (logWriter) Write(p []byte) (n int, err error) {
	logMutex.Lock()
	defer logMutex.Unlock()
	n, err = logStdout.Write(p)
	if err != nil || logFile == nil {
		return n, err
	}
	return logFile.Write(p)
}

// Returns a writer for the log, for passing into operator contexts
func LogWriter() io.Writer {
	return logWriter{}
}

func LogPrint(args ...interface{}) (n int, err error) {
	return fmt.Fprint(logWriter{}, args...)
}

func LogPrintln(args ...interface{}) (n int, err error) {
	return fmt.Fprintln(logWriter{}, args...)
}

func LogPrintf(format string, args ...interface{}) (n int, err error) {
	return fmt.Fprintf(logWriter{}, format, args...)
}

func LogFatal(args ...interface{}) {
	fmt.Fprintln(logWriter{}, args...)
	LogCloseFile()
	os.Exit(1)
}

func LogFatalf(format string, args ...interface{}) {
	fmt.Fprintf(logWriter{}, format, args...)
	LogCloseFile()
	os.Exit(1)
}

func LogSync() {
	logMutex.Lock()
	defer logMutex.Unlock()
	if logFile == nil {
		return
	}
	logFile.Flush()
	logFileOS.Sync()
}
