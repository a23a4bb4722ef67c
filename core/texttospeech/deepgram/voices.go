package deepgram

type deepgramVoice string

const (
	VoiceThalia    deepgramVoice = "aura-2-thalia-en"
	VoiceAndromeda deepgramVoice = "aura-2-andromeda-en"
	VoiceApollo    deepgramVoice = "aura-2-apollo-en"
	VoiceArcas     deepgramVoice = "aura-2-arcas-en"
	VoiceHelena    deepgramVoice = "aura-2-helena-en"
	VoiceOrion     deepgramVoice = "aura-2-orion-en"

	defaultVoice = VoiceThalia
)

func GetAvailableVoices() []deepgramVoice {
	return []deepgramVoice{VoiceThalia, VoiceAndromeda, VoiceApollo, VoiceArcas, VoiceHelena, VoiceOrion}
}

// ParseVoice returns the voice with the given model name.
func ParseVoice(name string) (deepgramVoice, bool) {
	for _, voice := range GetAvailableVoices() {
		if string(voice) == name {
			return voice, true
		}
	}
	return "", false
}
