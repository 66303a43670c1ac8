package main

import (
	"fmt"

	"github.com/spf13/afero"

	"github.com/HughODwyer90/hugh.casa/backup"
	"github.com/HughODwyer90/hugh.casa/configuration"
	"github.com/HughODwyer90/hugh.casa/contentsync"
	"github.com/HughODwyer90/hugh.casa/homeassistant"
	"github.com/HughODwyer90/hugh.casa/updater"
)

// env is everything a command needs, loaded once per process.
type env struct {
	conf    *configuration.Config
	secrets *configuration.Secrets
	fs      afero.Fs
}

func loadEnv() (*env, error) {
	conf, err := configuration.Read(configFile)
	if err != nil {
		return nil, fmt.Errorf("unable to read config file from %q: %w", configFile, err)
	}
	secrets, err := configuration.LoadSecrets(conf.SecretsFile)
	if err != nil {
		return nil, err
	}
	return &env{conf: conf, secrets: secrets, fs: afero.NewOsFs()}, nil
}

func (e *env) homeAssistant() (*homeassistant.Client, error) {
	vals, err := e.secrets.Require(e.conf.HATokenSecret)
	if err != nil {
		return nil, err
	}
	return homeassistant.New(e.conf.HAURL, vals[0], nil), nil
}

func (e *env) contentSync() (*contentsync.Client, error) {
	vals, err := e.secrets.Require(e.conf.GitHubTokenSecret, e.conf.GitHubRepoSecret)
	if err != nil {
		return nil, err
	}
	return contentsync.New(contentsync.Config{
		APIURL:     e.conf.GitHubAPIURL,
		Repo:       vals[1],
		Branch:     e.conf.GitHubBranch,
		Token:      vals[0],
		Attempts:   e.conf.Upload.Attempts,
		RetryDelay: e.conf.Upload.RetryDelay.Std(),
	})
}

func (e *env) poller() (*updater.Poller, error) {
	ha, err := e.homeAssistant()
	if err != nil {
		return nil, err
	}
	return updater.New(ha, updater.Config{
		PollInterval:  e.conf.Update.PollInterval.Std(),
		MaxPolls:      e.conf.Update.MaxPolls,
		ProgressEvery: e.conf.Update.ProgressEvery,
		TriggerDelay:  e.conf.Update.TriggerDelay.Std(),
	}), nil
}

func (e *env) backupJob() (*backup.Job, error) {
	ha, err := e.homeAssistant()
	if err != nil {
		return nil, err
	}
	sync, err := e.contentSync()
	if err != nil {
		return nil, err
	}
	b := e.conf.Backup
	return backup.New(ha, sync, e.fs, backup.Options{
		HTMLDir:     b.HTMLDir,
		YAMLDirs:    b.YAMLDirs,
		ScriptsDir:  b.ScriptsDir,
		ExcludeFile: b.ExcludeFile,
		UploadPause: b.UploadPause.Std(),
	}), nil
}
