package h264parser

import (
	"bytes"

	"github.com/bugVanisher/berrycam/utils/bits"
)

//SPSInfo ...
type SPSInfo struct {
	NalUnitType uint

	ProfileIdc        uint
	LevelIdc          uint
	SeqParameterSetID uint

	ChromaFormatIdc uint

	PicOrderCntType uint
	MaxNumRefFrames uint

	PicWidthInMbsMinus1       uint
	PicHeightInMapUnitsMinus1 uint
	FrameMbsOnlyFlag          uint

	CropLeft   uint
	CropRight  uint
	CropTop    uint
	CropBottom uint

	Width  uint
	Height uint

	FPS uint
}

var highProfiles = map[uint]bool{
	100: true, 110: true, 122: true, 244: true, 44: true, 83: true,
	86: true, 118: true, 128: true, 138: true, 139: true, 134: true, 135: true,
}

//ParseSPS parses an SPS NAL unit (header byte included) far enough to
//recover the coded picture size and the VUI frame rate.
func ParseSPS(data []byte) (sps SPSInfo, err error) {
	r := &bits.GolombBitReader{R: bytes.NewReader(DeEmulationPrevention(data))}

	// forbidden_zero_bit, nal_ref_idc
	if _, err = r.ReadBits(3); err != nil {
		return
	}
	if sps.NalUnitType, err = r.ReadBits(5); err != nil {
		return
	}
	if sps.ProfileIdc, err = r.ReadBits(8); err != nil {
		return
	}
	// constraint_set0..5_flag, reserved_zero_2bits
	if _, err = r.ReadBits(8); err != nil {
		return
	}
	if sps.LevelIdc, err = r.ReadBits(8); err != nil {
		return
	}
	if sps.SeqParameterSetID, err = r.ReadExponentialGolombCode(); err != nil {
		return
	}

	sps.ChromaFormatIdc = 1
	if highProfiles[sps.ProfileIdc] {
		if err = parseChroma(&sps, r); err != nil {
			return
		}
	}

	// log2_max_frame_num_minus4
	if _, err = r.ReadExponentialGolombCode(); err != nil {
		return
	}
	if sps.PicOrderCntType, err = r.ReadExponentialGolombCode(); err != nil {
		return
	}
	switch sps.PicOrderCntType {
	case 0:
		// log2_max_pic_order_cnt_lsb_minus4
		if _, err = r.ReadExponentialGolombCode(); err != nil {
			return
		}
	case 1:
		// delta_pic_order_always_zero_flag
		if _, err = r.ReadBit(); err != nil {
			return
		}
		// offset_for_non_ref_pic, offset_for_top_to_bottom_field
		for i := 0; i < 2; i++ {
			if _, err = r.ReadSE(); err != nil {
				return
			}
		}
		var cycle uint
		if cycle, err = r.ReadExponentialGolombCode(); err != nil {
			return
		}
		for i := uint(0); i < cycle; i++ {
			if _, err = r.ReadSE(); err != nil {
				return
			}
		}
	}

	if sps.MaxNumRefFrames, err = r.ReadExponentialGolombCode(); err != nil {
		return
	}
	// gaps_in_frame_num_value_allowed_flag
	if _, err = r.ReadBit(); err != nil {
		return
	}
	if sps.PicWidthInMbsMinus1, err = r.ReadExponentialGolombCode(); err != nil {
		return
	}
	if sps.PicHeightInMapUnitsMinus1, err = r.ReadExponentialGolombCode(); err != nil {
		return
	}
	if sps.FrameMbsOnlyFlag, err = r.ReadBit(); err != nil {
		return
	}
	if sps.FrameMbsOnlyFlag == 0 {
		// mb_adaptive_frame_field_flag
		if _, err = r.ReadBit(); err != nil {
			return
		}
	}
	// direct_8x8_inference_flag
	if _, err = r.ReadBit(); err != nil {
		return
	}

	var cropping uint
	if cropping, err = r.ReadBit(); err != nil {
		return
	}
	if cropping != 0 {
		for _, v := range []*uint{&sps.CropLeft, &sps.CropRight, &sps.CropTop, &sps.CropBottom} {
			if *v, err = r.ReadExponentialGolombCode(); err != nil {
				return
			}
		}
	}

	cropUnitX, cropUnitY := uint(2), 2*(2-sps.FrameMbsOnlyFlag)
	if sps.ChromaFormatIdc == 0 || sps.ChromaFormatIdc == 3 {
		cropUnitX, cropUnitY = 1, 2-sps.FrameMbsOnlyFlag
	}
	sps.Width = (sps.PicWidthInMbsMinus1+1)*16 - (sps.CropLeft+sps.CropRight)*cropUnitX
	sps.Height = (2-sps.FrameMbsOnlyFlag)*(sps.PicHeightInMapUnitsMinus1+1)*16 - (sps.CropTop+sps.CropBottom)*cropUnitY

	var vui uint
	if vui, err = r.ReadBit(); err != nil {
		// VUI is optional for geometry
		err = nil
		return
	}
	if vui != 0 {
		if fps, verr := parseVuiTiming(r); verr == nil {
			sps.FPS = fps
		}
	}
	return
}

func parseChroma(sps *SPSInfo, r *bits.GolombBitReader) (err error) {
	if sps.ChromaFormatIdc, err = r.ReadExponentialGolombCode(); err != nil {
		return
	}
	if sps.ChromaFormatIdc == 3 {
		// separate_colour_plane_flag
		if _, err = r.ReadBit(); err != nil {
			return
		}
	}
	// bit_depth_luma_minus8, bit_depth_chroma_minus8
	for i := 0; i < 2; i++ {
		if _, err = r.ReadExponentialGolombCode(); err != nil {
			return
		}
	}
	// qpprime_y_zero_transform_bypass_flag
	if _, err = r.ReadBit(); err != nil {
		return
	}
	var present uint
	if present, err = r.ReadBit(); err != nil || present == 0 {
		return
	}
	lists := 8
	if sps.ChromaFormatIdc == 3 {
		lists = 12
	}
	for i := 0; i < lists; i++ {
		var listPresent uint
		if listPresent, err = r.ReadBit(); err != nil {
			return
		}
		if listPresent == 0 {
			continue
		}
		size := 16
		if i >= 6 {
			size = 64
		}
		last, next := uint(8), uint(8)
		for j := 0; j < size; j++ {
			if next != 0 {
				var delta uint
				if delta, err = r.ReadSE(); err != nil {
					return
				}
				next = (last + delta + 256) % 256
			}
			if next != 0 {
				last = next
			}
		}
	}
	return
}

func parseVuiTiming(r *bits.GolombBitReader) (fps uint, err error) {
	var flag uint
	// aspect_ratio_info_present_flag
	if flag, err = r.ReadBit(); err != nil {
		return
	}
	if flag != 0 {
		var idc uint
		if idc, err = r.ReadBits(8); err != nil {
			return
		}
		if idc == 255 {
			if _, err = r.ReadBits(32); err != nil {
				return
			}
		}
	}
	// overscan_info_present_flag
	if flag, err = r.ReadBit(); err != nil {
		return
	}
	if flag != 0 {
		if _, err = r.ReadBit(); err != nil {
			return
		}
	}
	// video_signal_type_present_flag
	if flag, err = r.ReadBit(); err != nil {
		return
	}
	if flag != 0 {
		if _, err = r.ReadBits(4); err != nil {
			return
		}
		var colour uint
		if colour, err = r.ReadBit(); err != nil {
			return
		}
		if colour != 0 {
			if _, err = r.ReadBits(24); err != nil {
				return
			}
		}
	}
	// chroma_loc_info_present_flag
	if flag, err = r.ReadBit(); err != nil {
		return
	}
	if flag != 0 {
		for i := 0; i < 2; i++ {
			if _, err = r.ReadExponentialGolombCode(); err != nil {
				return
			}
		}
	}
	// timing_info_present_flag
	if flag, err = r.ReadBit(); err != nil || flag == 0 {
		return
	}
	var units, scale, fixed uint
	if units, err = r.ReadBits(32); err != nil {
		return
	}
	if scale, err = r.ReadBits(32); err != nil {
		return
	}
	if fixed, err = r.ReadBit(); err != nil {
		return
	}
	if units > 0 {
		fps = scale / units
		if fixed != 0 {
			fps /= 2
		}
	}
	return
}
