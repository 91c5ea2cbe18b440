// Copyright lowRISC contributors (OpenTitan project).
// Licensed under the Apache License, Version 2.0, see LICENSE for details.
// SPDX-License-Identifier: Apache-2.0

package utils

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"reflect"
	"strconv"

	"github.com/gyroidos/trustcore/src/version/buildver"
	"gopkg.in/yaml.v3"
)

func PrintVersion(exit bool) string {
	ver := buildver.FormattedStr()
	if exit {
		fmt.Println(ver)
		os.Exit(0)
	}
	log.Print(ver)
	return ver
}

// ReadFile reads data from file.
// If succeed, ReadFile returns the data of the file as byte array;
// otherwise ReadFile returns an error.
func ReadFile(filename string) ([]byte, error) {
	if _, err := os.Stat(filename); os.IsNotExist(err) {
		return nil, fmt.Errorf("file does not exist: %q, error: %v",
			filename, err)
	}
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	return data, nil
}

func ReadFileFromDir(configDir, filename string) ([]byte, error) {
	absPath := filepath.Join(configDir, filename)
	data, err := ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("unable to read file: %q, error: %v", absPath, err)
	}
	return data, nil
}

// WriteFile writes data to the named file, creating it if necessary.
// If the file does not exist, WriteFile creates it with permissions perm (before umask);
// otherwise WriteFile truncates it before writing, without changing permissions.
func WriteFile(name string, data []byte, perm os.FileMode) error {
	f, err := os.OpenFile(name, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	_, err = f.Write(data)
	if err1 := f.Close(); err1 != nil && err == nil {
		err = err1
	}
	return err
}

func setDefaults(config interface{}) {
	t := reflect.TypeOf(config).Elem()
	v := reflect.ValueOf(config).Elem()

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		value := v.Field(i)

		defaultTag := field.Tag.Get("default")
		if defaultTag == "" || value.Interface() != reflect.Zero(value.Type()).Interface() {
			continue
		}

		switch value.Kind() {
		case reflect.String:
			value.SetString(defaultTag)
		case reflect.Bool:
			if b, err := strconv.ParseBool(defaultTag); err == nil {
				value.SetBool(b)
			}
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			if n, err := strconv.ParseInt(defaultTag, 10, 64); err == nil {
				value.SetInt(n)
			}
		}
	}
}

// LoadConfig reads a Yaml configuration file from the specified path with
// filename and unmarshals it into the provided struct (v).
//
// Parameters:
//   - configDir:  The directory path of the Yaml configuration file.
//   - configFile: The file path of the Yaml configuration file.
//   - v:          A pointer to the struct where the configuration will be unmarshaled.
//
// Returns:
//   - An error if there was an issue reading or unmarshaling the configuration file.
func LoadConfig(configDir, configFile string, v interface{}) error {
	yamlData, err := ReadFileFromDir(configDir, configFile)
	if err != nil {
		return fmt.Errorf("failed to load configuration file: %v", err)
	}

	err = yaml.Unmarshal(yamlData, v)
	if err != nil {
		// Return an error if the YAML does not match any known configuration types
		return fmt.Errorf("failed to unmarshal configuration file: %v", err)
	}

	setDefaults(v)

	return nil
}
