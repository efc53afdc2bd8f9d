// conf/defaults.go default values for settings
package conf

import (
	"github.com/spf13/viper"
)

// Sets default values for the configuration.
func setDefaultConfig() {
	viper.SetDefault("debug", false)

	viper.SetDefault("main.name", "VoiceGuard-Go")
	viper.SetDefault("main.log.enabled", true)
	viper.SetDefault("main.log.path", "voiceguard.log")
	viper.SetDefault("main.log.maxsizemb", 10)
	viper.SetDefault("main.log.maxbackups", 3)
	viper.SetDefault("main.log.maxagedays", 30)

	viper.SetDefault("audio.samplerate", 16000)
	viper.SetDefault("audio.windowseconds", 4.0)
	viper.SetDefault("audio.maxwindows", 3)
	viper.SetDefault("audio.minduration", 0.5)
	viper.SetDefault("audio.maxduration", 300.0)
	viper.SetDefault("audio.maxbytes", 15_000_000)
	viper.SetDefault("audio.ffmpegpath", "ffmpeg")
	viper.SetDefault("audio.formats", []string{"mp3", "wav", "flac", "ogg", "m4a"})

	viper.SetDefault("qc.silenceratiothreshold", 0.80)
	viper.SetDefault("qc.samplesilencefloor", 0.01)
	viper.SetDefault("qc.clippingfloor", 0.99)
	viper.SetDefault("qc.silenceconfidencecap", 0.60)

	viper.SetDefault("models.primary.id", "aasist-ft")
	viper.SetDefault("models.primary.enabled", true)
	viper.SetDefault("models.primary.path", "models/aasist_finetuned.tflite")
	viper.SetDefault("models.primary.uri", "")
	viper.SetDefault("models.secondary.id", "aasist-orig")
	viper.SetDefault("models.secondary.enabled", true)
	viper.SetDefault("models.secondary.path", "models/aasist_original.tflite")
	viper.SetDefault("models.secondary.uri", "")
	viper.SetDefault("models.threads", 0)
	viper.SetDefault("models.usexnnpack", true)

	viper.SetDefault("fusion.threshold", 0.5)
	viper.SetDefault("fusion.rules.agreehigh", 0.95)
	viper.SetDefault("fusion.rules.inversionhigh", 0.95)
	viper.SetDefault("fusion.rules.inversionbandlow", 0.85)
	viper.SetDefault("fusion.rules.inversionbandhigh", 0.92)
	viper.SetDefault("fusion.rules.inversionlanguages", DravidianLanguages)

	viper.SetDefault("weights.cachedir", "models")
	viper.SetDefault("weights.region", "us-east-1")

	viper.SetDefault("web.host", "0.0.0.0")
	viper.SetDefault("web.port", 8080)
	viper.SetDefault("web.apikeys", []string{})
	viper.SetDefault("web.maxinflight", 1)
	viper.SetDefault("web.enablemetrics", true)

	viper.SetDefault("sentry.enabled", false)
	viper.SetDefault("sentry.dsn", "")
}
