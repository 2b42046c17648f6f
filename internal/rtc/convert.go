package rtc

import (
	"fmt"

	pion "github.com/pion/webrtc/v4"

	"github.com/tincan-labs/tincan/internal/call"
	"github.com/tincan-labs/tincan/internal/signaling"
)

func descriptionToWire(sd *pion.SessionDescription) signaling.Description {
	if sd == nil {
		return signaling.Description{}
	}
	return signaling.Description{
		Type: sd.Type.String(),
		SDP:  sd.SDP,
	}
}

func descriptionFromWire(d signaling.Description) (pion.SessionDescription, error) {
	sdpType := pion.NewSDPType(d.Type)
	if sdpType == pion.SDPTypeUnknown {
		return pion.SessionDescription{}, fmt.Errorf("%w: sdp type %q", call.ErrUnexpectedSignal, d.Type)
	}
	return pion.SessionDescription{Type: sdpType, SDP: d.SDP}, nil
}

func candidateToWire(init pion.ICECandidateInit) signaling.Candidate {
	return signaling.Candidate{
		Candidate:        init.Candidate,
		SDPMid:           init.SDPMid,
		SDPMLineIndex:    init.SDPMLineIndex,
		UsernameFragment: init.UsernameFragment,
	}
}

func candidateFromWire(c signaling.Candidate) pion.ICECandidateInit {
	return pion.ICECandidateInit{
		Candidate:        c.Candidate,
		SDPMid:           c.SDPMid,
		SDPMLineIndex:    c.SDPMLineIndex,
		UsernameFragment: c.UsernameFragment,
	}
}
